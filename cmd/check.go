package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/odoo-gateway/internal/config"
	"github.com/jmehdipour/odoo-gateway/internal/logger"
	"github.com/jmehdipour/odoo-gateway/internal/odoo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Log in to Odoo and read contacts and users once",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := logger.Init(cfg.Log.Level); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		// 2) client
		client := odoo.NewFromConfig(cfg.Odoo, odoo.WithLogger(logger.Log.Named("odoo")))
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		return runCheck(ctx, client, cmd)
	},
}

func runCheck(ctx context.Context, client *odoo.Client, cmd *cobra.Command) error {
	uid, err := client.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	contacts, err := client.ListContacts(ctx)
	if err != nil {
		return fmt.Errorf("list contacts: %w", err)
	}
	users, err := client.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	logger.Log.Info("odoo check passed",
		zap.String("mode", string(client.Session().Mode())),
		zap.Int64("uid", uid),
		zap.Int("contacts", len(contacts)),
		zap.Int("users", len(users)),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "ok: mode=%s uid=%d contacts=%d users=%d\n",
		client.Session().Mode(), uid, len(contacts), len(users))
	return nil
}
