package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Wieedze/Sofia-Attestor-Template/api/schemas"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/config"
)

func newLinkCmd() *cobra.Command {
	var (
		wallet   string
		platform string
		token    string
		clientID string
	)

	linkCmd := &cobra.Command{
		Use:   "link",
		Short: "Verify an OAuth token and write the claim triple on-chain",
		Long: `Verifies the access token against the platform's API, pins the verified
identity's label, creates any missing atoms (wallet, predicate, identity), and
links them with a claim triple. The result is printed as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Get()

			parsed, err := schemas.ParsePlatform(platform)
			if err != nil {
				return err
			}
			applyClientID(cfg, parsed, clientID)

			components, err := buildComponents(ctx, cfg)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			result := components.Pipeline.Link(ctx, wallet, parsed, token)

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize result: %w", err)
			}
			fmt.Println(string(out))

			if !result.Success {
				return result.Err
			}
			return nil
		},
	}

	linkCmd.Flags().StringVar(&wallet, "wallet", "", "wallet address to link (required)")
	linkCmd.Flags().StringVar(&platform, "platform", "", "platform to verify: discord, youtube, spotify, twitch, twitter (required)")
	linkCmd.Flags().StringVar(&token, "token", "", "OAuth access token (required)")
	linkCmd.Flags().StringVar(&clientID, "client-id", "", "auxiliary client id for platforms that need one (twitch)")
	_ = linkCmd.MarkFlagRequired("wallet")
	_ = linkCmd.MarkFlagRequired("platform")
	_ = linkCmd.MarkFlagRequired("token")

	return linkCmd
}
