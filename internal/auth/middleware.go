package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/gin-gonic/gin"
)

const actorContextKey = "actor"

// UserLoader is the narrow slice of storage the middleware needs to resolve
// a token into an Actor.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetStudentByUserID(ctx context.Context, userID string) (*models.Student, error)
}

// Middleware verifies the bearer token, loads the user (and student profile
// for student callers) and attaches the Actor to the request context.
func Middleware(tm *TokenManager, loader UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
			return
		}

		claims, err := tm.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
			return
		}

		user, err := loader.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil || user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
			return
		}
		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "AccountInactive"})
			return
		}

		actor := &Actor{User: user}
		if user.Role == models.RoleStudent {
			student, err := loader.GetStudentByUserID(c.Request.Context(), user.ID)
			if err != nil || student == nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
				return
			}
			actor.Student = student
		}

		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not in the allowed set.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := CurrentActor(c)
		if actor == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
			return
		}
		for _, role := range roles {
			if actor.Role() == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "AccessDenied"})
	}
}

// CurrentActor retrieves the resolved Actor from the gin context; nil when
// the request did not pass the auth middleware.
func CurrentActor(c *gin.Context) *Actor {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return nil
	}
	actor, ok := v.(*Actor)
	if !ok {
		return nil
	}
	return actor
}
