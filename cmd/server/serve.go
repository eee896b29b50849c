package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nguvuhire/config"
	"nguvuhire/internal/database"
	"nguvuhire/internal/repository"
	"nguvuhire/internal/router"
	"nguvuhire/internal/service"
	"nguvuhire/pkg/pesapal"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func serveCmd() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the background reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(config.Load(), skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not run AutoMigrate on startup")
	return cmd
}

func runServe(cfg *config.Config, skipMigrate bool) error {
	gateway, err := pesapal.NewClient(pesapalConfig(cfg))
	if err != nil {
		// every Pesapal setting is required before accepting checkouts
		return fmt.Errorf("pesapal: %w", err)
	}

	db, err := openDB(cfg, !skipMigrate)
	if err != nil {
		return err
	}

	deps := router.Deps{Gateway: gateway}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Printf("[REDIS] %s unreachable, falling back to database dedupe: %v", cfg.Redis.Addr, err)
		} else {
			deps.Dedupe = repository.NewRedisDeduper(rdb, cfg.Redis.DedupeTTL)
			log.Printf("[REDIS] checkout dedupe via %s", cfg.Redis.Addr)
		}
		cancel()
	}
	if fcm := service.NewFCMService(cfg.Firebase.ServiceAccountPath); fcm != nil {
		deps.FCM = fcm
	}

	app := router.Setup(cfg, db, deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Reconcile.Enabled {
		go app.Reconciler.Run(ctx)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	log.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Println("server stopped")
	return nil
}

func openDB(cfg *config.Config, migrate bool) (*gorm.DB, error) {
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if migrate {
		if err := database.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return db, nil
}

func pesapalConfig(cfg *config.Config) pesapal.Config {
	return pesapal.Config{
		BaseURL:         cfg.Pesapal.BaseURL,
		ConsumerKey:     cfg.Pesapal.ConsumerKey,
		ConsumerSecret:  cfg.Pesapal.ConsumerSecret,
		CallbackBaseURL: cfg.Pesapal.CallbackBaseURL,
		IPNID:           cfg.Pesapal.IPNID,
		Timeout:         cfg.Pesapal.Timeout,
	}
}
