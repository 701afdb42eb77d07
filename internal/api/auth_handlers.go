package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vidstream/internal/auth"
	"vidstream/internal/user"
	"vidstream/pkg/models"
)

type registerRequest struct {
	Username    string `json:"username" binding:"required,username"`
	Email       string `json:"email" binding:"required,email,max=100"`
	Password    string `json:"password" binding:"required,password"`
	Role        string `json:"role" binding:"required,oneof=creator viewer"`
	DisplayName string `json:"displayName" binding:"omitempty,max=100"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    models.User `json:"user"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	u, err := s.users.Register(c.Request.Context(), user.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		DisplayName: strings.TrimSpace(req.DisplayName),
	})
	if err != nil {
		respondError(c, "register", err)
		return
	}

	token, err := auth.SignJWT(s.jwtSecret, u.ID, u.Username, s.jwtTTL)
	if err != nil {
		respondError(c, "register: sign token", err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{Message: "User registered successfully", Token: token, User: u})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	u, err := s.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, "login", err)
		return
	}

	token, err := auth.SignJWT(s.jwtSecret, u.ID, u.Username, s.jwtTTL)
	if err != nil {
		respondError(c, "login: sign token", err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Message: "Login successful", Token: token, User: u})
}

func (s *Server) handleProfile(c *gin.Context) {
	p, err := s.users.Profile(c.Request.Context(), auth.ViewerID(c))
	if err != nil {
		respondError(c, "profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": p})
}
