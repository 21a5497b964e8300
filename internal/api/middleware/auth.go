package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/talhajamadar1013-star/Qmail/internal/config"
	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

// ContextHolderKey is where RequireHolder stores the caller's holder id.
const ContextHolderKey = "holderID"

type AuthMiddleware struct {
	security config.SecurityConfig
	logger   *zap.Logger
}

func NewAuthMiddleware(security config.SecurityConfig, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		security: security,
		logger:   logger,
	}
}

// RequireHolder demands the X-User-ID header and stashes it for handlers.
func (am *AuthMiddleware) RequireHolder() gin.HandlerFunc {
	return func(c *gin.Context) {
		holder := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if holder == "" {
			abortWithError(c, http.StatusBadRequest, keyerrors.KindInvalidArgument, "X-User-ID header is required")
			return
		}
		c.Set(ContextHolderKey, holder)
		c.Next()
	}
}

// RequireAuth demands both the holder header and a bearer token from the
// configured list.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	requireHolder := am.RequireHolder()
	return func(c *gin.Context) {
		requireHolder(c)
		if c.IsAborted() {
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, keyerrors.KindUnauthorized, "Authorization header with Bearer token is required")
			return
		}
		if !tokenAllowed(token, am.security.APITokens) {
			am.logger.Warn("Rejected API token",
				zap.String("client_ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path))
			abortWithError(c, http.StatusUnauthorized, keyerrors.KindUnauthorized, "Invalid API token")
			return
		}
		c.Next()
	}
}

// RequireService guards the internal surface with the service token.
func (am *AuthMiddleware) RequireService() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, keyerrors.KindUnauthorized, "Authorization header with Bearer token is required")
			return
		}

		var allowed []string
		if am.security.ServiceToken != "" {
			allowed = []string{am.security.ServiceToken}
		}
		if !tokenAllowed(token, allowed) {
			am.logger.Warn("Rejected service token",
				zap.String("client_ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path))
			abortWithError(c, http.StatusUnauthorized, keyerrors.KindUnauthorized, "Invalid API token")
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	if !found || token == "" {
		return "", false
	}
	return token, true
}

// tokenAllowed checks the token against every configured one in constant
// time. An empty allowed list accepts any non-empty token, which is the
// development posture.
func tokenAllowed(token string, allowed []string) bool {
	if len(allowed) == 0 {
		return token != ""
	}

	ok := false
	for _, candidate := range allowed {
		if subtle.ConstantTimeCompare([]byte(token), []byte(candidate)) == 1 {
			ok = true
		}
	}
	return ok
}

func abortWithError(c *gin.Context, status int, kind keyerrors.Kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": message,
		"kind":  string(kind),
	})
}
