package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"vidstream/internal/api"
	"vidstream/internal/config"
	"vidstream/internal/engagement"
	"vidstream/internal/events"
	grpcserver "vidstream/internal/grpc"
	"vidstream/internal/natspub"
	"vidstream/internal/ratelimit"
	"vidstream/internal/storage"
	"vidstream/internal/tcpfeed"
	"vidstream/internal/user"
	"vidstream/internal/video"
	"vidstream/internal/websocket"
	"vidstream/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBDriver == "sqlite3" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabaseURL), 0o755); err != nil {
			log.Fatal(err)
		}
	}
	db, err := database.Open(cfg.DBDriver, cfg.DatabaseURL, database.Options{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
		MaxLifetime:  cfg.MaxLifetime,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}
	seed(db, cfg)

	files, err := storage.NewDir(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		log.Fatal(err)
	}

	// Engagement events: ledger -> broker -> websocket / tcp / nats
	broker := events.NewBroker(100)
	hubFeed := broker.Subscribe(64)
	tcpFeed := broker.Subscribe(64)
	var natsFeed <-chan events.Event
	if cfg.NATSURL != "" {
		natsFeed = broker.Subscribe(256)
	}
	go broker.Run(ctx)

	hub := websocket.NewHub()
	go hub.Run(ctx, hubFeed)
	log.Println("Engagement hub started")

	tcpServer := tcpfeed.New(cfg.FeedAddr, tcpFeed)
	go func() {
		if err := tcpServer.Start(ctx); err != nil {
			log.Printf("tcp feed stopped: %v", err)
		}
	}()

	if natsFeed != nil {
		pub, err := natspub.Connect(natspub.Config{
			URL:           cfg.NATSURL,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			ClientName:    "vidstream",
		})
		if err != nil {
			log.Printf("warn: NATS unavailable, events not exported: %v", err)
		} else {
			defer pub.Close()
			go pub.Run(ctx, natsFeed)
			log.Printf("Publishing engagement events to NATS at %s", cfg.NATSURL)
		}
	}

	// gRPC health
	grpcSrv := grpcserver.NewServer(db)
	go grpcSrv.Watch(ctx, 15*time.Second)
	go func() {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Printf("gRPC listen: %v", err)
			return
		}
		if err := grpcSrv.Serve(lis); err != nil {
			log.Printf("gRPC serve: %v", err)
		}
	}()
	defer grpcSrv.Stop()

	ledger := engagement.NewLedger(db, broker)
	srv, err := api.New(api.Deps{
		DB:             db,
		Users:          user.NewStore(db),
		Videos:         video.NewCatalog(db, ledger),
		Ledger:         ledger,
		Files:          files,
		Hub:            hub,
		Limiter:        newLimiter(ctx, cfg),
		JWTSecret:      []byte(cfg.JWTSecret),
		JWTTTL:         cfg.JWTTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		log.Fatal(err)
	}

	r := gin.Default()
	srv.Routes(r)

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Printf("HTTP API listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}

func seed(db *sqlx.DB, cfg config.Config) {
	if !cfg.SeedDemo {
		return
	}
	users := database.DemoUsers()
	if _, err := os.Stat(cfg.SeedFile); err == nil {
		list, err := database.LoadSeedUsersFromJSON(cfg.SeedFile)
		if err != nil {
			log.Fatal(err)
		}
		users = list
	}
	n, err := database.SeedUsers(db, users)
	if err != nil {
		log.Fatal(err)
	}
	if n > 0 {
		log.Printf("Seeded %d demo users", n)
	}
}

// newLimiter prefers Redis when configured and reachable; AUTH_RATE_LIMIT=0 disables limiting.
func newLimiter(ctx context.Context, cfg config.Config) ratelimit.Limiter {
	if cfg.AuthRateLimit <= 0 {
		return nil
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := rdb.Ping(pingCtx).Err()
		if err == nil {
			var l *ratelimit.Store
			if l, err = ratelimit.NewRedis(rdb, cfg.AuthRateLimit, cfg.AuthRateWindow); err == nil {
				log.Printf("Auth rate limit: redis at %s", cfg.RedisAddr)
				return l
			}
		}
		log.Printf("warn: redis unavailable, using in-memory rate limit: %v", err)
		_ = rdb.Close()
	}
	return ratelimit.NewMemory(cfg.AuthRateLimit, cfg.AuthRateWindow)
}
