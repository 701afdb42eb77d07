package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vidstream/internal/apperr"
	"vidstream/internal/auth"
)

type updateUserRequest struct {
	DisplayName string `json:"displayName" binding:"required,max=100"`
	Bio         string `json:"bio" binding:"max=500"`
}

func (s *Server) handleGetUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := s.users.PublicProfile(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": p})
}

func (s *Server) handleUpdateUser(c *gin.Context) {
	id, ok := s.selfOnly(c, "you can only update your own profile")
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		respondInvalid(c, "displayName is required")
		return
	}

	u, err := s.users.UpdateProfile(c.Request.Context(), id, displayName, strings.TrimSpace(req.Bio))
	if err != nil {
		respondError(c, "update user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": u})
}

// handleDeactivateUser soft-disables the caller's account. Existing tokens stop working on the next request.
func (s *Server) handleDeactivateUser(c *gin.Context) {
	id, ok := s.selfOnly(c, "you can only deactivate your own account")
	if !ok {
		return
	}
	if err := s.users.SetActive(c.Request.Context(), id, false); err != nil {
		respondError(c, "deactivate user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deactivated"})
}

func (s *Server) handleSubscriptions(c *gin.Context) {
	id, ok := s.selfOnly(c, "you can only view your own subscriptions")
	if !ok {
		return
	}
	list, err := s.ledger.Following(c.Request.Context(), id)
	if err != nil {
		respondError(c, "subscriptions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": list})
}

func (s *Server) handleSubscribers(c *gin.Context) {
	id, ok := s.selfOnly(c, "you can only view your own subscribers")
	if !ok {
		return
	}
	list, err := s.ledger.Followers(c.Request.Context(), id)
	if err != nil {
		respondError(c, "subscribers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribers": list})
}

// selfOnly parses :id and requires it to be the caller.
func (s *Server) selfOnly(c *gin.Context, denied string) (int64, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return 0, false
	}
	if id != auth.ViewerID(c) {
		respondError(c, "", apperr.Forbidden(denied))
		return 0, false
	}
	return id, true
}
