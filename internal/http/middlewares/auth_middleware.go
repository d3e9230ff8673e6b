package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/devhub/internal/actorctx"
	"github.com/geocoder89/devhub/internal/auth"
	"github.com/gin-gonic/gin"
)

// TokenHeader carries the bearer token issued at register and login.
const TokenHeader = "x-auth-token"

const (
	msgNoToken      = "Unauthorized: no token"
	msgTokenInvalid = "Unauthorized: token invalid"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c)
		if raw == "" {
			abortUnauthorized(c, msgNoToken)
			return
		}

		claims, err := m.jwt.Verify(raw)
		if err != nil || claims.User.ID == "" {
			abortUnauthorized(c, msgTokenInvalid)
			return
		}

		c.Set(CtxUserID, claims.User.ID)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), claims.User.ID))

		c.Next()
	}
}

// tokenFromRequest prefers x-auth-token and falls back to a Bearer header.
func tokenFromRequest(c *gin.Context) string {
	if tok := strings.TrimSpace(c.GetHeader(TokenHeader)); tok != "" {
		return tok
	}

	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	reqID, _ := c.Get(CtxRequestID)

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":      "unauthorized",
			"message":   msg,
			"requestId": reqID,
		},
	})
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
