package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bingo-room-backend/config"
	"bingo-room-backend/internal/api"
	"bingo-room-backend/internal/bus"
	"bingo-room-backend/internal/db"
	"bingo-room-backend/internal/game"
	"bingo-room-backend/internal/identity"
	"bingo-room-backend/internal/notification"
	"bingo-room-backend/internal/reaper"
	"bingo-room-backend/internal/store"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	cfg.Log.SetupLogger()
	logrus.Infof("configuration loaded from %s", configPath)

	debug := logrus.IsLevelEnabled(logrus.DebugLevel)
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := newBus(ctx, cfg.Redis)
	if err != nil {
		logrus.Fatalf("failed to initialize change bus: %v", err)
	}
	defer changes.Close()

	var gormDB *gorm.DB
	var roomStore store.Store
	if cfg.Database.Driver == "memory" {
		logrus.Warn("rooms are kept in memory and will be lost on restart")
		roomStore = store.NewMemoryStore()
	} else {
		gormDB, err = db.Init(&cfg.Database, debug)
		if err != nil {
			logrus.Fatalf("failed to initialize database: %v", err)
		}
		roomStore = store.NewGormStore(gormDB, changes)
	}
	if err := roomStore.Start(ctx); err != nil {
		logrus.Fatalf("failed to start room store: %v", err)
	}

	ids, err := identity.NewProvider(cfg.Identity.Secret, cfg.Identity.Issuer, cfg.Identity.TokenTTL)
	if err != nil {
		logrus.Fatalf("failed to initialize identity provider: %v", err)
	}

	opts := game.Options{
		CodeLength:         cfg.Game.CodeLength,
		DefaultMaxNumber:   cfg.Game.DefaultMaxNumber,
		Limits:             game.Limits{Min: cfg.Game.MinReconfigNumber, Max: cfg.Game.MaxReconfigNumber},
		AllowPlayerMarking: cfg.Game.AllowPlayerMarking,
		MaxWriteAttempts:   cfg.Game.MaxWriteAttempts,
		CodeCacheTTL:       time.Duration(cfg.Game.CodeCacheMinutes) * time.Minute,
	}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			logrus.Fatal("push is enabled but VAPID keys are not configured")
		}
		if gormDB == nil {
			logrus.Fatal("push notifications need a database driver other than memory")
		}
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		workerPool.Start(ctx)
		opts.Notifier = workerPool
	}

	svc := game.NewService(roomStore, opts)

	go reaper.NewService(cfg.Reaper, svc).Run(ctx)

	handler := api.NewHandler(svc, ids, gormDB, webpushOptions, cfg.Server.AllowedOrigins)
	router := api.NewRouter(handler, cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logrus.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server Shutdown: %v", err)
	}

	logrus.Info("server gracefully stopped")
}

// newBus returns the Redis bus when enabled so that several instances
// sharing one database see each other's writes.
func newBus(ctx context.Context, cfg config.RedisConfig) (bus.Bus, error) {
	if !cfg.Enabled {
		return bus.NewLocal(0), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	logrus.WithField("addr", cfg.Addr).Info("using redis change bus")
	return bus.NewRedis(client, cfg.KeyPrefix), nil
}
