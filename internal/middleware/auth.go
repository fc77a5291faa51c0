// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"docqa-go/pkg/log"
	"docqa-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// AuthFailureMessage 是认证失败时返回给客户端的错误信息。
const AuthFailureMessage = "Invalid or missing Authorization token"

// BearerAuth 创建一个 Gin 中间件，校验 Authorization: Bearer <token>。
func BearerAuth(verifier *token.Verifier) gin.HandlerFunc {
	return authenticate(verifier, headerToken)
}

// WebSocketAuth 用于 WebSocket 握手路由。
// 浏览器无法为握手请求设置请求头，因此请求头为空时也接受 access_token 查询参数。
func WebSocketAuth(verifier *token.Verifier) gin.HandlerFunc {
	return authenticate(verifier, func(c *gin.Context) string {
		if c.GetHeader("Authorization") == "" {
			return c.Query("access_token")
		}
		return headerToken(c)
	})
}

func authenticate(verifier *token.Verifier, extract func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !verifier.Verify(extract(c)) {
			log.Warnf("[Auth] 认证失败, path: %s, clientIP: %s", c.Request.URL.Path, c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    http.StatusForbidden,
				"message": AuthFailureMessage,
			})
			return
		}
		c.Next()
	}
}

func headerToken(c *gin.Context) string {
	const bearerPrefix = "Bearer "
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
}
