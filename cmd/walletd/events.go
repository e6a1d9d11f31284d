package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"walletd/internal/clients"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Tail wallet events published on NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.NATS.URL == "" {
				return errors.New("nats.url is not configured")
			}

			client, err := clients.NewNATSClient(cfg.NATS, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			sub, err := client.Subscribe(func(msg *nats.Msg) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", msg.Subject, msg.Data)
			})
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
}
