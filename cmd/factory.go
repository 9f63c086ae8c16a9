package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Wieedze/Sofia-Attestor-Template/api/schemas"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/config"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/ledger"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/network"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/oauth"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/observability"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/pinner"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/pipeline"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/store"
)

// The concrete services satisfy the pipeline's interfaces; keep the compiler
// honest about it here, at the wiring site.
var (
	_ pipeline.Verifier  = (*oauth.Verifier)(nil)
	_ pipeline.Pinner    = (*pinner.Pinner)(nil)
	_ pipeline.Ledger    = (*ledger.Client)(nil)
	_ pipeline.LinkStore = (*store.Store)(nil)
	_ pipeline.LinkStore = store.Null{}
)

// Components holds the initialized services for one pipeline run and owns
// their lifecycles.
type Components struct {
	Verifier *oauth.Verifier
	Pinner   *pinner.Pinner
	Ledger   *ledger.Client
	Store    pipeline.LinkStore
	Pipeline *pipeline.Pipeline

	ethClient *ethclient.Client
	dbPool    *pgxpool.Pool
}

// Shutdown releases connections in reverse initialization order.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	if c.dbPool != nil {
		c.dbPool.Close()
		logger.Debug("Database connection pool closed.")
	}
	if c.ethClient != nil {
		c.ethClient.Close()
		logger.Debug("RPC connection closed.")
	}
}

// applyClientID lets a command-line flag override the configured auxiliary
// credential for one platform.
func applyClientID(cfg *config.Config, platform schemas.Platform, clientID string) {
	if clientID == "" {
		return
	}
	if cfg.Platforms == nil {
		cfg.Platforms = make(map[string]config.PlatformConfig, 1)
	}
	cfg.Platforms[string(platform)] = config.PlatformConfig{ClientID: clientID}
}

// buildComponents performs the dependency injection for the link pipeline.
func buildComponents(ctx context.Context, cfg *config.Config) (*Components, error) {
	logger := observability.GetLogger()

	net, err := cfg.Active()
	if err != nil {
		return nil, err
	}

	components := &Components{}
	var initErr error
	defer func() {
		if initErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initErr))
			components.Shutdown()
		}
	}()

	// 1. Shared HTTP client for the provider and pinning endpoints.
	httpCfg := network.NewDefaultClientConfig()
	if cfg.HTTP.Timeout > 0 {
		httpCfg.RequestTimeout = cfg.HTTP.Timeout
	}
	httpCfg.IgnoreTLSErrors = cfg.HTTP.IgnoreTLSErrors
	httpCfg.Logger = logger
	httpClient := network.NewClient(httpCfg)

	// 2. Token verifier.
	clientIDs := make(map[schemas.Platform]string, len(cfg.Platforms))
	for name, pc := range cfg.Platforms {
		platform, err := schemas.ParsePlatform(name)
		if err != nil {
			initErr = fmt.Errorf("platforms config: %w", err)
			return nil, initErr
		}
		clientIDs[platform] = pc.ClientID
	}
	components.Verifier = oauth.New(httpClient, clientIDs, logger)
	logger.Debug("Token verifier initialized.")

	// 3. Label pinner.
	components.Pinner = pinner.New(net.PinningURL, httpClient.Client, logger)
	logger.Debug("Label pinner initialized.")

	// 4. Ledger client.
	if cfg.Ledger.SigningKey == "" {
		initErr = fmt.Errorf("no signing key configured (hint: set SOFIA_LEDGER_SIGNING_KEY)")
		return nil, initErr
	}
	signer, err := ledger.NewKeySigner(cfg.Ledger.SigningKey)
	if err != nil {
		initErr = err
		return nil, initErr
	}

	ethClient, err := ethclient.DialContext(ctx, net.RPCURL)
	if err != nil {
		initErr = fmt.Errorf("failed to dial RPC endpoint: %w", err)
		return nil, initErr
	}
	components.ethClient = ethClient

	multivault := common.HexToAddress(net.MultivaultAddress)
	var route ledger.WriteRoute = ledger.DirectRoute{Multivault: multivault}
	if cfg.Ledger.Route == "proxied" {
		proxyFee, err := config.ParseWei(cfg.Ledger.ProxyFeeWei)
		if err != nil {
			initErr = err
			return nil, initErr
		}
		route = ledger.ProxiedRoute{Proxy: common.HexToAddress(net.ProxyAddress), Fee: proxyFee}
	}

	components.Ledger = ledger.NewClient(ethClient, ledger.Config{
		Multivault:   multivault,
		Route:        route,
		Signer:       signer,
		ChainID:      net.ChainID,
		PollInterval: cfg.Ledger.ConfirmPollInterval,
	}, logger)
	logger.Debug("Ledger client initialized.", zap.String("multivault", multivault.Hex()))

	// 5. Link store (optional).
	if cfg.Database.URL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			initErr = fmt.Errorf("failed to create database connection pool: %w", err)
			return nil, initErr
		}
		components.dbPool = dbPool
		dbStore, err := store.New(ctx, dbPool, logger)
		if err != nil {
			initErr = err
			return nil, initErr
		}
		components.Store = dbStore
		logger.Debug("Link store initialized.")
	} else {
		components.Store = store.Null{}
		logger.Debug("No database configured, link store disabled.")
	}

	// 6. Pipeline.
	atomDeposit, err := config.ParseWei(cfg.Ledger.AtomDepositWei)
	if err != nil {
		initErr = err
		return nil, initErr
	}
	tripleSurcharge, err := config.ParseWei(cfg.Ledger.TripleSurchargeWei)
	if err != nil {
		initErr = err
		return nil, initErr
	}
	components.Pipeline = pipeline.New(
		components.Verifier,
		components.Pinner,
		components.Ledger,
		components.Store,
		pipeline.Config{AtomDeposit: atomDeposit, TripleSurcharge: tripleSurcharge},
		logger,
	)

	logger.Info("All link components initialized successfully.")
	return components, nil
}
