package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dm-chat-service/internal/auth"
	"dm-chat-service/internal/config"
	"dm-chat-service/internal/database"
	"dm-chat-service/internal/handler"
	"dm-chat-service/internal/journal"
	"dm-chat-service/internal/presence"
	"dm-chat-service/internal/realtime"
	"dm-chat-service/internal/store"
	"dm-chat-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logg := logger.New(cfg.Server.LogLevel)
	logg.Info("starting dm chat server")

	rdb, err := database.NewRedisConnection(&cfg.Redis)
	if err != nil {
		logg.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	db, err := database.NewMySQLConnection(&cfg.Database)
	if err != nil {
		logg.Error("mysql connection failed", "error", err)
		os.Exit(1)
	}

	st := store.NewGormStore(db)
	if err := st.Migrate(); err != nil {
		logg.Error("migration failed", "error", err)
		os.Exit(1)
	}

	instanceID := uuid.New().String()
	mirror := presence.NewRedisMirror(rdb, instanceID)
	registry := presence.NewRegistry(mirror, logg)

	var jrnl journal.Journal = journal.Nop{}
	if cfg.Kafka.Enabled {
		kj := journal.NewKafkaJournal(cfg.Kafka.Brokers, cfg.Kafka.Topic, logg)
		defer kj.Close()
		jrnl = kj
	}

	hub := realtime.NewHub(realtime.HubOptions{
		Registry:       registry,
		Store:          st,
		Journal:        jrnl,
		Feed:           mirror,
		RateLimit:      cfg.Realtime.RateLimit,
		RateWindow:     cfg.Realtime.RateLimitWindow,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
		Logger:         logg,
		InstanceID:     instanceID,
	})
	go hub.Run()

	authenticator := auth.NewAuthenticator(cfg.JWT.Secret, cfg.JWT.Issuer)
	engine := handler.NewRouter(hub, authenticator, st, rdb, logg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logg.Info("server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Stop()
	if err := server.Shutdown(ctx); err != nil {
		logg.Error("forced shutdown", "error", err)
	}

	logg.Info("server stopped")
}
