package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erp/backoffice/internal/interfaces/http/dto"
)

// BodyLimit rejects declared bodies over maxBytes and caps streamed ones
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			abort(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
