package audit

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/odoo-gateway/internal/audit"
	"github.com/jmehdipour/odoo-gateway/internal/config"
	"github.com/jmehdipour/odoo-gateway/internal/kafka"
	"github.com/jmehdipour/odoo-gateway/internal/logger"
	"github.com/jmehdipour/odoo-gateway/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Consume audit events and log them",
	RunE:  runTail,
}

func runTail(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.Log.Named("audit")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	if len(cfg.Audit.Brokers) == 0 || cfg.Audit.Topic == "" {
		return fmt.Errorf("audit.brokers and audit.topic are required")
	}

	// 2) kafka consumer
	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers: cfg.Audit.Brokers,
		Topic:   cfg.Audit.Topic,
		GroupID: cfg.Audit.GroupID,
	})
	defer consumer.Close()

	// 3) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("audit tail started",
		zap.Strings("brokers", cfg.Audit.Brokers),
		zap.String("topic", cfg.Audit.Topic),
		zap.String("group", cfg.Audit.GroupID),
	)

	return audit.NewTailer(consumer, log).Run(ctx)
}
