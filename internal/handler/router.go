package handler

import (
	"docqa-go/internal/middleware"
	"docqa-go/internal/service"
	"docqa-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// RouterDeps 汇总注册路由所需的依赖。
type RouterDeps struct {
	QAService       service.QAService
	DocumentService service.DocumentService
	Verifier        *token.Verifier
	DB              Pinger
	MaxBytes        int64
}

// NewRouter 创建 gin 引擎并注册全部路由。
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	qaHandler := NewQAHandler(deps.QAService, deps.MaxBytes)
	docHandler := NewDocumentHandler(deps.DocumentService)
	auth := middleware.BearerAuth(deps.Verifier)
	wsAuth := middleware.WebSocketAuth(deps.Verifier)

	r.GET("/healthz", Health(deps.DB))

	// 保留原始路径
	r.POST("/hackrx/run", auth, qaHandler.Run)

	apiV1 := r.Group("/api/v1")
	{
		hackrx := apiV1.Group("/hackrx")
		{
			hackrx.POST("/run", auth, qaHandler.Run)
			hackrx.GET("/stream", wsAuth, qaHandler.Stream)
		}

		documents := apiV1.Group("/documents")
		documents.Use(auth)
		{
			documents.GET("", docHandler.List)
			documents.GET("/:id/queries", docHandler.ListQueries)
			documents.GET("/:id/download", docHandler.Download)
			documents.DELETE("/:id", docHandler.Delete)
		}
	}
	return r
}
