package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hilo-chat/hilo/internal/chat"
	"github.com/hilo-chat/hilo/internal/config"
	"github.com/hilo-chat/hilo/internal/db"
	"github.com/hilo-chat/hilo/internal/engine"
	"github.com/hilo-chat/hilo/internal/httpapi"
	"github.com/hilo-chat/hilo/internal/httpapi/handlers"
	"github.com/hilo-chat/hilo/internal/identity"
	"github.com/hilo-chat/hilo/internal/store/rabbitmq"
	"github.com/hilo-chat/hilo/internal/store/redisstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}

	eng := engine.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIAssistantID)

	// Identity cache is an optimization; run without it if redis is down.
	var cache identity.Cache
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rds.Ping(pingCtx); err != nil {
		log.Printf("redis unavailable, identity cache disabled: %v", err)
	} else {
		cache = rds
	}
	cancelPing()

	resolver := identity.NewResolver(gdb, cache)

	var publisher chat.ExchangePublisher
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatalf("rabbitmq: %v", err)
		}
		defer pub.Close()
		publisher = pub
	}

	repo := chat.NewRepo(gdb)
	svc := chat.NewService(repo, eng, publisher, cfg.RunPollInterval, cfg.RunTimeout)

	router := httpapi.NewRouter(handlers.NewHandler(svc, resolver))

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	// In-flight sends may block for up to the run deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
