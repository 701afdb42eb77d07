package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vidstream/internal/apperr"
	"vidstream/internal/auth"
)

func (s *Server) handleToggleLike(c *gin.Context) {
	videoID, ok := paramID(c, "videoId")
	if !ok {
		return
	}
	res, err := s.ledger.ToggleLike(c.Request.Context(), auth.ViewerID(c), videoID)
	if err != nil {
		respondError(c, "toggle like", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleToggleFollow(c *gin.Context) {
	userID, ok := paramID(c, "userId")
	if !ok {
		return
	}
	res, err := s.ledger.ToggleFollow(c.Request.Context(), auth.ViewerID(c), userID)
	if err != nil {
		respondError(c, "toggle follow", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleFollowing(c *gin.Context) {
	list, err := s.ledger.Following(c.Request.Context(), auth.ViewerID(c))
	if err != nil {
		respondError(c, "following", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": list})
}

// handleSubscribe is the users-scoped alias of follow.
func (s *Server) handleSubscribe(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := s.ledger.ToggleFollow(c.Request.Context(), auth.ViewerID(c), userID)
	if err != nil {
		if apperr.Is(err, apperr.KindInvalidOperation) {
			respondInvalid(c, "cannot subscribe to yourself")
			return
		}
		respondError(c, "subscribe", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribed": res.Following, "subscriberCount": res.FollowerCount})
}
