package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireAPIToken authenticates requests with a static bearer token.
func (s *Server) RequireAPIToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			abortError(c, http.StatusUnauthorized, "missing bearer credential")
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortError(c, http.StatusUnauthorized, "invalid bearer credential")
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(s.token)) != 1 {
			abortError(c, http.StatusUnauthorized, "invalid bearer credential")
			return
		}

		c.Next()
	}
}
