package middleware

import (
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextUserIDKey is the gin context key under which VerifyToken stores the
// authenticated user id.
const ContextUserIDKey = "userID"

// AuthMiddleware verifies Firebase ID tokens on proxied store requests. The
// auth client is constructed in main and injected; the middleware never
// reaches for a shared global.
type AuthMiddleware struct {
	authClient *auth.Client
	logger     *zap.Logger
}

// NewAuthMiddleware creates an AuthMiddleware. A nil auth client is a setup
// error: routes cannot be secured without one.
func NewAuthMiddleware(authClient *auth.Client, logger *zap.Logger) *AuthMiddleware {
	if authClient == nil {
		panic("auth middleware requires a non-nil Firebase Auth client")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{authClient: authClient, logger: logger}
}

// VerifyToken rejects requests without a valid "Bearer {token}" Authorization
// header and stores the verified user id in the context.
func (m *AuthMiddleware) VerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header is required",
				"code":  "unauthenticated",
			})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header format must be 'Bearer {token}'",
				"code":  "unauthenticated",
			})
			return
		}
		token, err := m.authClient.VerifyIDToken(c.Request.Context(), parts[1])
		if err != nil {
			// Details stay server-side; the client gets a generic message.
			m.logger.Warn("ID token verification failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired authentication token",
				"code":  "unauthenticated",
			})
			return
		}
		c.Set(ContextUserIDKey, token.UID)
		c.Next()
	}
}
