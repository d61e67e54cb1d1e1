package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
)

// AuthConfig carries the credentials the API accepts. Both empty means the
// API runs open, which is the desktop-local default.
type AuthConfig struct {
	// APIToken enables static bearer-token auth.
	APIToken string
	// JWTSecret enables HS256 bearer-token auth.
	JWTSecret string
}

type AuthMiddleware struct {
	log    *logger.Logger
	token  []byte
	secret []byte
}

func NewAuthMiddleware(log *logger.Logger, cfg AuthConfig) *AuthMiddleware {
	am := &AuthMiddleware{log: log.With("middleware", "Auth")}
	if t := strings.TrimSpace(cfg.APIToken); t != "" {
		am.token = []byte(t)
	}
	if s := strings.TrimSpace(cfg.JWTSecret); s != "" {
		am.secret = []byte(s)
	}
	return am
}

// Enabled reports whether any credential is configured.
func (am *AuthMiddleware) Enabled() bool {
	return am != nil && (len(am.token) > 0 || len(am.secret) > 0)
}

// RequireAuth rejects requests without an accepted bearer token. With no
// credentials configured everything passes through.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !am.Enabled() {
			c.Next()
			return
		}
		token := extractToken(c)
		if token == "" {
			abortUnauthorized(c, "missing or invalid token")
			return
		}
		if !am.accepts(token) {
			abortUnauthorized(c, "invalid token")
			return
		}
		c.Next()
	}
}

func (am *AuthMiddleware) accepts(token string) bool {
	if len(am.token) > 0 && subtle.ConstantTimeCompare(am.token, []byte(token)) == 1 {
		return true
	}
	if len(am.secret) > 0 {
		if err := am.verifyJWT(token); err != nil {
			am.log.Debug("jwt rejected", "error", err)
		} else {
			return true
		}
	}
	return false
}

func (am *AuthMiddleware) verifyJWT(token string) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return am.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("token invalid")
	}
	return nil
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"message": msg, "code": "unauthorized"},
	})
}
