package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vidstream/internal/auth"
	"vidstream/internal/engagement"
	"vidstream/internal/ratelimit"
	"vidstream/internal/storage"
	"vidstream/internal/user"
	"vidstream/internal/video"
	"vidstream/internal/websocket"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	DB      Pinger
	Users   *user.Store
	Videos  *video.Catalog
	Ledger  *engagement.Ledger
	Files   *storage.Dir
	Hub     *websocket.Hub
	Limiter ratelimit.Limiter // nil disables rate limiting

	JWTSecret      []byte
	JWTTTL         time.Duration
	MaxUploadBytes int64
}

// Server holds the HTTP handlers.
type Server struct {
	db      Pinger
	users   *user.Store
	videos  *video.Catalog
	ledger  *engagement.Ledger
	files   *storage.Dir
	hub     *websocket.Hub
	limiter ratelimit.Limiter

	jwtSecret []byte
	jwtTTL    time.Duration
	maxUpload int64
}

func New(d Deps) (*Server, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}
	return &Server{
		db:        d.DB,
		users:     d.Users,
		videos:    d.Videos,
		ledger:    d.Ledger,
		files:     d.Files,
		hub:       d.Hub,
		limiter:   d.Limiter,
		jwtSecret: d.JWTSecret,
		jwtTTL:    d.JWTTTL,
		maxUpload: d.MaxUploadBytes,
	}, nil
}

func (s *Server) Routes(r *gin.Engine) {
	requireAuth := auth.RequireJWT(s.jwtSecret, s.users)
	optionalAuth := auth.OptionalJWT(s.jwtSecret, s.users)
	creatorOnly := auth.RequireCreator()

	r.GET("/health", s.handleHealth)
	r.GET("/ws", optionalAuth, websocket.HandleWebSocket(s.hub))

	// AUTH
	a := r.Group("/auth")
	limited := a.Group("")
	if s.limiter != nil {
		limited.Use(ratelimit.Middleware(s.limiter))
	}
	limited.POST("/register", s.handleRegister)
	limited.POST("/login", s.handleLogin)
	a.GET("/profile", requireAuth, s.handleProfile)

	// VIDEOS
	v := r.Group("/videos")
	v.GET("", optionalAuth, s.handleListVideos)
	v.GET("/my", requireAuth, creatorOnly, s.handleMyVideos)
	v.GET("/:id", optionalAuth, s.handleGetVideo)
	v.GET("/:id/stream", optionalAuth, s.handleStreamVideo)
	v.POST("", requireAuth, creatorOnly, s.handleUploadVideo)
	v.DELETE("/:id", requireAuth, creatorOnly, s.handleDeleteVideo)

	// INTERACTIONS
	in := r.Group("/interactions", requireAuth)
	in.POST("/like/:videoId", s.handleToggleLike)
	in.POST("/follow/:userId", s.handleToggleFollow)
	in.GET("/following", s.handleFollowing)

	// USERS
	u := r.Group("/users")
	u.GET("/:id", s.handleGetUser)
	u.PUT("/:id", requireAuth, s.handleUpdateUser)
	u.DELETE("/:id", requireAuth, s.handleDeactivateUser)
	u.POST("/:id/subscribe", requireAuth, s.handleSubscribe)
	u.GET("/:id/subscriptions", requireAuth, s.handleSubscriptions)
	u.GET("/:id/subscribers", requireAuth, s.handleSubscribers)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "db": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "db": "up"})
}
