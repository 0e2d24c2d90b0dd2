package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"lobechat-go/internal/transport/http/response"
)

const (
	ContextUserIDKey     = "user_id"
	ContextAuthMethodKey = "auth_method"

	APIKeyHeader = "X-API-Key"
)

type TokenParser interface {
	ParseToken(token string) (string, error)
}

type APIKeyValidator interface {
	Validate(raw string) (string, error)
}

// Auth accepts a bearer JWT or an X-API-Key header. The resolved user id is
// stored under ContextUserIDKey.
func Auth(tokens TokenParser, keys APIKeyValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := strings.TrimSpace(c.GetHeader(APIKeyHeader)); raw != "" && keys != nil {
			userID, err := keys.Validate(raw)
			if err != nil {
				response.Error(c, 401, response.CodeInvalidAPIKey, "invalid or expired api key")
				c.Abort()
				return
			}
			c.Set(ContextUserIDKey, userID)
			c.Set(ContextAuthMethodKey, "api_key")
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, 401, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, 401, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		userID, err := tokens.ParseToken(token)
		if err != nil {
			response.Error(c, 401, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextAuthMethodKey, "jwt")
		c.Next()
	}
}

// UserID returns the authenticated user id set by Auth.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
