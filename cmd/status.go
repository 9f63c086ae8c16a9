package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/Wieedze/Sofia-Attestor-Template/internal/config"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/observability"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/store"
)

func newStatusCmd() *cobra.Command {
	var wallet string

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List the stored links for a wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Get()
			logger := observability.GetLogger()

			if cfg.Database.URL == "" {
				return fmt.Errorf("status requires a configured database (hint: set SOFIA_DATABASE_URL)")
			}

			pool, err := pgxpool.New(ctx, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer pool.Close()

			linkStore, err := store.New(ctx, pool, logger)
			if err != nil {
				return err
			}

			records, err := linkStore.LinksByWallet(ctx, wallet)
			if err != nil {
				return fmt.Errorf("failed to read links: %w", err)
			}

			out, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize links: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	statusCmd.Flags().StringVar(&wallet, "wallet", "", "wallet address to look up (required)")
	_ = statusCmd.MarkFlagRequired("wallet")

	return statusCmd
}
