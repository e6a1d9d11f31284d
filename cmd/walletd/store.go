package main

import (
	"context"
	"fmt"
	"time"

	"walletd/internal/app"

	"github.com/spf13/cobra"
)

func storeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Wallet store maintenance",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Open the configured store and list record metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.NATS.URL = ""

			container, err := app.InitializeContainer(cfg, logger)
			if err != nil {
				return err
			}
			defer container.Cleanup()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			records, err := container.Store.GetAll(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "📋 store=%s records=%d\n", cfg.Store.Driver, len(records))
			for _, r := range records {
				fmt.Fprintf(out, "  %s  %s  %-20q seed=%t  %s\n", r.ID, r.Address, r.Label, r.HasSeedPhrase, r.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	})
	return cmd
}
