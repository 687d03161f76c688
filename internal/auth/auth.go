// Package auth protects the control API with static bearer tokens. Operator
// identity inside the action protocol is separate; this guards the HTTP
// surface itself.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Config enables token authentication for the HTTP API.
type Config struct {
	Enabled bool     `toml:"enabled" mapstructure:"enabled"`
	Tokens  []string `toml:"tokens" mapstructure:"tokens"`
}

// Middleware validates Authorization: Bearer headers against the configured
// token set.
type Middleware struct {
	enabled bool
	tokens  []string
}

func NewMiddleware(c Config) *Middleware {
	return &Middleware{enabled: c.Enabled, tokens: append([]string(nil), c.Tokens...)}
}

// GinAuth returns the gin handler enforcing authentication. Disabled
// middleware passes every request through.
func (m *Middleware) GinAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Next()
			return
		}
		token, ok := bearerToken(c.Request)
		if !ok || !m.tokenValid(token) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (m *Middleware) tokenValid(token string) bool {
	ok := false
	// compare against every token so timing does not reveal which one matched
	for _, t := range m.tokens {
		if len(t) == len(token) && subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			ok = true
		}
	}
	return ok
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, prefix))
	return token, token != ""
}
