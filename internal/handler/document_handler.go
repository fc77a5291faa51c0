package handler

import (
	"errors"
	"net/http"
	"strconv"

	"docqa-go/internal/model"
	"docqa-go/internal/repository"
	"docqa-go/internal/service"
	"docqa-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentDTO 是返回给客户端的文档信息。
type DocumentDTO struct {
	ID         uint            `json:"id"`
	URL        string          `json:"url,omitempty"`
	FileName   string          `json:"fileName,omitempty"`
	Namespace  string          `json:"namespace"`
	ChunkCount int             `json:"chunkCount"`
	Archived   bool            `json:"archived"`
	CreatedAt  model.LocalTime `json:"createdAt"`
}

// QueryDTO 是返回给客户端的问答记录。
type QueryDTO struct {
	ID        uint            `json:"id"`
	Question  string          `json:"question"`
	Answer    string          `json:"answer"`
	CreatedAt model.LocalTime `json:"createdAt"`
}

// DocumentHandler 负责处理所有与文档管理相关的 API 请求。
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// List 处理分页获取已入库文档的请求。
func (h *DocumentHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	page, err := h.docService.List(c.Request.Context(), limit, offset)
	if err != nil {
		log.Error("[DocumentHandler] 获取文档列表失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取文档列表失败"})
		return
	}

	items := make([]DocumentDTO, 0, len(page.Items))
	for _, d := range page.Items {
		items = append(items, DocumentDTO{
			ID:         d.ID,
			URL:        d.URL,
			FileName:   d.FileName,
			Namespace:  d.Namespace,
			ChunkCount: d.ChunkCount,
			Archived:   d.ArchiveKey != "",
			CreatedAt:  model.LocalTime(d.CreatedAt),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"items": items, "total": page.Total},
	})
}

// ListQueries 处理获取某个文档问答记录的请求。
func (h *DocumentHandler) ListQueries(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	queries, err := h.docService.ListQueries(c.Request.Context(), id)
	if err != nil {
		writeDocumentError(c, "获取问答记录失败", err)
		return
	}

	items := make([]QueryDTO, 0, len(queries))
	for _, q := range queries {
		items = append(items, QueryDTO{ID: q.ID, Question: q.Question, Answer: q.Answer, CreatedAt: model.LocalTime(q.CreatedAt)})
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": items})
}

// Delete 处理删除文档的请求。
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.docService.Delete(c.Request.Context(), id); err != nil {
		writeDocumentError(c, "删除文档失败", err)
		return
	}
	log.Infof("[DocumentHandler] 文档已删除, id: %d", id)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "删除成功"})
}

// Download 返回原始文件的预签名下载链接。
func (h *DocumentHandler) Download(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	info, err := h.docService.GenerateDownloadURL(c.Request.Context(), id)
	if errors.Is(err, service.ErrNoArchive) {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文档没有归档的原始文件"})
		return
	}
	if err != nil {
		writeDocumentError(c, "生成下载链接失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": info})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的文档 ID"})
		return 0, false
	}
	return uint(id), true
}

func writeDocumentError(c *gin.Context, msg string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文档不存在"})
		return
	}
	log.Error("[DocumentHandler] "+msg, err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": msg})
}
