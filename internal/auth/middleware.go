package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"vidstream/internal/apperr"
	"vidstream/pkg/models"
)

const CtxUserIDKey = "user_id"
const CtxUserKey = "user"

// UserLookup re-reads the account behind a token on every request.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
}

// RequireJWT rejects the request unless it carries a valid token for an active user.
func RequireJWT(secret []byte, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "access token required")
			return
		}
		claims, err := ParseJWT(secret, tokenStr)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortUnauthorized(c, "token expired")
				return
			}
			abortUnauthorized(c, "invalid token")
			return
		}

		u, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				abortUnauthorized(c, "invalid token - user not found")
				return
			}
			log.Printf("auth: load user %d: %v", claims.UserID, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": apperr.KindInternal})
			return
		}
		if !u.IsActive {
			abortUnauthorized(c, "account disabled")
			return
		}

		setUser(c, u)
		c.Next()
	}
}

// OptionalJWT attaches the user when a valid token is present and otherwise continues anonymously.
func OptionalJWT(secret []byte, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}
		claims, err := ParseJWT(secret, tokenStr)
		if err != nil {
			c.Next()
			return
		}
		u, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err == nil && u.IsActive {
			setUser(c, u)
		} else if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			log.Printf("auth: optional lookup %d: %v", claims.UserID, err)
		}
		c.Next()
	}
}

// RequireCreator must run after RequireJWT.
func RequireCreator() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			abortUnauthorized(c, "access token required")
			return
		}
		if !u.IsCreator() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "creator access required", "code": apperr.KindForbidden})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the identity attached by RequireJWT or OptionalJWT.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return models.User{}, false
	}
	u, ok := v.(models.User)
	return u, ok
}

// ViewerID is 0 for anonymous requests.
func ViewerID(c *gin.Context) int64 {
	return c.GetInt64(CtxUserIDKey)
}

func setUser(c *gin.Context, u models.User) {
	c.Set(CtxUserIDKey, u.ID)
	c.Set(CtxUserKey, u)
}

func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if h == "" || !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return tokenStr, tokenStr != ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": apperr.KindUnauthenticated})
}
