package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Wieedze/Sofia-Attestor-Template/internal/config"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/observability"
)

// Version is stamped by the release build.
var Version = "0.2.0-dev"

var (
	cfgFile     string
	networkFlag string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "sofia",
	Short:         "Sofia links verified social identities to wallets on the knowledge graph.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}

		if networkFlag != "" {
			viper.Set("network", networkFlag)
		}

		if err := config.Load(viper.GetViper()); err != nil {
			return err
		}
		cfg := config.Get()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Debug("Configuration loaded",
			zap.String("network", cfg.Network),
			zap.String("version", Version))
		return nil
	},
}

// Execute adds all child commands to the root command and runs it with the
// context passed from main for graceful shutdown.
func Execute(ctx context.Context) error {
	rootCmd.AddCommand(newLinkCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newStatusCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() == nil {
			if logger := observability.GetLogger(); logger != nil {
				logger.Error("Command execution failed", zap.Error(err))
			} else {
				fmt.Fprintln(os.Stderr, "Error:", err)
			}
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&networkFlag, "network", "", "network profile to use (testnet or mainnet)")
}

// initializeConfig reads in the config file and ENV variables if set.
func initializeConfig() error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SOFIA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Secrets come from the environment, never the config file.
	_ = viper.BindEnv("ledger.signing_key", "SOFIA_LEDGER_SIGNING_KEY", "SOFIA_SIGNING_KEY")
	_ = viper.BindEnv("database.url", "SOFIA_DATABASE_URL")
	_ = viper.BindEnv("platforms.twitch.client_id", "SOFIA_TWITCH_CLIENT_ID")

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
