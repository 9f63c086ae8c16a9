package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Wieedze/Sofia-Attestor-Template/api/schemas"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/config"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/network"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/oauth"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/observability"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/pipeline"
)

func newVerifyCmd() *cobra.Command {
	var (
		platform  string
		tokenArgs []string
		clientID  string
	)

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify OAuth tokens without touching the ledger",
		Long: `Verifies access tokens against the platforms' APIs. A single --token with
--platform prints that verification result. Repeating --token with
platform=token pairs verifies them concurrently and judges the outcome
against the configured verification threshold.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Get()
			logger := observability.GetLogger()

			tokens, err := parseTokenArgs(platform, tokenArgs)
			if err != nil {
				return err
			}
			for p := range tokens {
				applyClientID(cfg, p, clientID)
			}

			// Verification needs no RPC or database; wire just the verifier.
			httpCfg := network.NewDefaultClientConfig()
			if cfg.HTTP.Timeout > 0 {
				httpCfg.RequestTimeout = cfg.HTTP.Timeout
			}
			httpCfg.IgnoreTLSErrors = cfg.HTTP.IgnoreTLSErrors
			clientIDs := make(map[schemas.Platform]string, len(cfg.Platforms))
			for name, pc := range cfg.Platforms {
				if p, err := schemas.ParsePlatform(name); err == nil {
					clientIDs[p] = pc.ClientID
				}
			}
			verifier := oauth.New(network.NewClient(httpCfg), clientIDs, logger)

			if len(tokens) == 1 {
				for p, token := range tokens {
					result := verifier.Verify(ctx, p, token)
					if err := printJSON(result); err != nil {
						return err
					}
					if !result.Valid {
						return fmt.Errorf("verification failed: %s", result.Error)
					}
				}
				return nil
			}

			// Threshold mode exercises only the verifier half of the pipeline.
			verifyOnly := pipeline.New(verifier, nil, nil, nil, pipeline.Config{}, logger)
			eligible := pipeline.AllowedTokens(tokens, cfg.Verification.Platforms)
			outcome := verifyOnly.VerifyThreshold(ctx, eligible, cfg.Verification.Threshold)
			if err := printJSON(outcome); err != nil {
				return err
			}
			if !outcome.Met {
				return fmt.Errorf("verification threshold not met: %d verified, %d required",
					outcome.Verified, outcome.Threshold)
			}
			return nil
		},
	}

	verifyCmd.Flags().StringVar(&platform, "platform", "", "platform for a bare --token value")
	verifyCmd.Flags().StringArrayVar(&tokenArgs, "token", nil, "OAuth access token, or platform=token; repeatable (required)")
	verifyCmd.Flags().StringVar(&clientID, "client-id", "", "auxiliary client id for platforms that need one (twitch)")
	_ = verifyCmd.MarkFlagRequired("token")

	return verifyCmd
}

// parseTokenArgs maps the --token values to their platforms. A bare value
// takes its platform from the --platform flag; the platform=token form names
// it inline.
func parseTokenArgs(platformFlag string, args []string) (map[schemas.Platform]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one --token is required")
	}
	tokens := make(map[schemas.Platform]string, len(args))
	for _, arg := range args {
		name, token := platformFlag, arg
		if i := strings.IndexByte(arg, '='); i >= 0 {
			name, token = arg[:i], arg[i+1:]
		}
		if name == "" {
			return nil, fmt.Errorf("--token %q names no platform: pass --platform or use the platform=token form", arg)
		}
		parsed, err := schemas.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		if token == "" {
			return nil, fmt.Errorf("empty token for platform %s", parsed)
		}
		if _, dup := tokens[parsed]; dup {
			return nil, fmt.Errorf("platform %s given more than one token", parsed)
		}
		tokens[parsed] = token
	}
	return tokens, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
