package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"data-audit/internal/audit"
)

// ActorKey is the gin context key holding the authenticated operator.
const ActorKey = "actor"

// Principals maps a verified token subject to the actor recorded for writes.
type Principals interface {
	Principal(ctx context.Context, subject string) (string, error)
}

// Middleware attaches the bearer token's principal to the request context as
// the acting actor. Requests without a token pass through unchanged so the
// configured fallback actor applies. Malformed or expired tokens, and tokens
// whose subject principals cannot resolve, are rejected. A nil principals
// uses the subject as the actor.
func Middleware(tokens *Tokens, principals Principals) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Next()
			return
		}

		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must be a bearer token"})
			return
		}

		actor, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if principals != nil {
			if actor, err = principals.Principal(c.Request.Context(), actor); err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
		}

		c.Set(ActorKey, actor)
		c.Request = c.Request.WithContext(audit.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}
