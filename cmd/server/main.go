package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ichiboo/backend/internal/config"
	"ichiboo/backend/internal/httpapi"
	"ichiboo/backend/internal/pos"
	"ichiboo/backend/internal/store/kv"
	"ichiboo/backend/internal/store/memory"
)

func main() {
	cfg := config.Load()
	if cfg.AuthSecret == "" {
		log.Println("WARNING: AUTH_SECRET not set, using a development default")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 1)

	var persister kv.Store
	switch {
	case cfg.DatabaseURL != "":
		pg, err := kv.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start without it", err)
		}
		persister = pg
		closers = append(closers, pg.Close)
		log.Println("persistence: postgres")
	case cfg.RedisAddr != "":
		rd := kv.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKeyPrefix)
		if err := rd.Ping(ctx); err != nil {
			log.Fatalf("redis unavailable (%v) and REDIS_ADDR is set; refusing to start without it", err)
		}
		persister = rd
		closers = append(closers, rd.Close)
		log.Println("persistence: redis")
	default:
		persister = kv.NewVolatile()
		log.Println("persistence: volatile (data is lost on restart)")
	}

	var repo *memory.Store
	var err error
	if _, volatile := persister.(*kv.Volatile); volatile {
		repo, err = memory.NewSeeded(ctx)
	} else {
		repo, err = memory.New(ctx, persister)
	}
	if err != nil {
		log.Fatalf("load store: %v", err)
	}

	svc := pos.New(repo)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, svc)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}
