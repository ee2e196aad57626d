package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/odoo-gateway/internal/audit"
	"github.com/jmehdipour/odoo-gateway/internal/config"
	"github.com/jmehdipour/odoo-gateway/internal/db"
	httpSrv "github.com/jmehdipour/odoo-gateway/internal/http"
	"github.com/jmehdipour/odoo-gateway/internal/http/middleware"
	"github.com/jmehdipour/odoo-gateway/internal/logger"
	"github.com/jmehdipour/odoo-gateway/internal/odoo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := logger.Init(cfg.Log.Level); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		log := logger.Log

		client := odoo.NewFromConfig(cfg.Odoo, odoo.WithLogger(log.Named("odoo")))
		defer client.Close()
		log.Info("odoo client ready",
			zap.String("url", cfg.Odoo.URL),
			zap.String("db", cfg.Odoo.DB),
			zap.String("mode", string(client.Session().Mode())),
		)

		// rate limit counters: redis when enabled, in-process otherwise
		var store middleware.Store
		if cfg.API.EnableRateLimit && cfg.Redis.Enabled {
			rdb, err := db.NewRedisClient(db.RedisOptsFromConfig(cfg.Redis))
			if err != nil {
				return fmt.Errorf("redis connect: %w", err)
			}
			defer func() { _ = rdb.Close() }()
			store = middleware.NewRedisStore(rdb)
		}

		pipeline, err := middleware.NewPipelineFromConfig(cfg.API, store, cfg.Redis.KeyPrefix, log.Named("gate"))
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}

		pub := audit.NewPublisherFromConfig(cfg.Audit, log.Named("audit"))
		defer func() {
			if err := pub.Close(); err != nil {
				log.Warn("audit close", zap.Error(err))
			}
		}()

		server, err := httpSrv.NewServer(cfg, client, pipeline, pub, log)
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		var runErr error
		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case runErr = <-errCh:
			if runErr != nil {
				log.Error("http server exited", zap.Error(runErr))
			}
		}

		timeout := cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}

		return runErr
	},
}
