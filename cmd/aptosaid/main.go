package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sameermankotia/AptosAI/internal/advisor"
	aiopenai "github.com/sameermankotia/AptosAI/internal/advisor/openai"
	"github.com/sameermankotia/AptosAI/internal/api"
	"github.com/sameermankotia/AptosAI/internal/auth"
	"github.com/sameermankotia/AptosAI/internal/chain"
	"github.com/sameermankotia/AptosAI/internal/chain/aptos"
	"github.com/sameermankotia/AptosAI/internal/config"
	"github.com/sameermankotia/AptosAI/internal/dex"
	"github.com/sameermankotia/AptosAI/internal/journal"
	"github.com/sameermankotia/AptosAI/internal/knowledge"
	"github.com/sameermankotia/AptosAI/internal/market"
	"github.com/sameermankotia/AptosAI/internal/notify"
	"github.com/sameermankotia/AptosAI/internal/portfolio"
	"github.com/sameermankotia/AptosAI/internal/trading"
	"github.com/sameermankotia/AptosAI/pkg/logger"
)

func main() {
	// Populate the environment from .env when present; real env wins.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("aptosaid failed: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("APTOSAI_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "aptosai.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled: cfg.Logging.AuditPath != "",
			Path:    cfg.Logging.AuditPath,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()

	chainClient, err := aptos.NewClient(aptos.Config{
		NodeURL:    cfg.Chain.NodeURL,
		PrivateKey: cfg.Chain.PrivateKey(),
		Timeout:    cfg.Chain.Timeout(),
	})
	if err != nil {
		return err
	}
	defer chainClient.Close()
	if !chainClient.CanSign() {
		logger.L().Warn("no signing key configured, running read-only",
			"env", cfg.Chain.PrivateKeyEnv)
	}

	pools, err := dex.LoadPoolDefinitions(cfg.DEX.PoolsFile)
	if err != nil {
		return err
	}
	registry := dex.NewRegistry()
	registry.Register(dex.ProtocolLiquidswap, dex.NewLiquidswap(chainClient, pools.ForProtocol("liquidswap")))
	registry.Register(dex.ProtocolPancake, dex.NewPancake(chainClient, pools.ForProtocol("pancake")))

	advisorClient := newAdvisor(cfg)

	var knowledgeProvider knowledge.Provider
	if cfg.Advisor.Knowledge != "" {
		provider, err := knowledge.LoadStaticProvider(cfg.Advisor.Knowledge, cfg.Advisor.MaxKnowledge)
		if err != nil {
			return err
		}
		knowledgeProvider = provider
	}

	store, err := newJournal(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := newNotifier(ctx, cfg)
	if err != nil {
		return err
	}
	defer events.Close()

	sources, tickerFeed, err := newMarketSources(ctx, cfg, chainClient, pools.Pools)
	if err != nil {
		return err
	}
	if tickerFeed != nil {
		defer tickerFeed.Close()
	}

	aggregator, err := portfolio.New(chainClient, registry, advisorClient,
		portfolio.WithKnowledge(knowledgeProvider))
	if err != nil {
		return err
	}

	loop, err := trading.NewLoop(trading.Config{
		Interval:          cfg.Trading.Interval(),
		MinTradeInterval:  cfg.Trading.MinTradeInterval(),
		MaxPriceImpactBps: int64(cfg.Trading.MaxPriceImpactBps),
		Address:           cfg.Trading.Address,
	}, chainClient, registry, advisorClient, sources, store, events)
	if err != nil {
		return err
	}

	authSvc := auth.NewService(cfg.Auth.Enabled, cfg.Auth.APIKeys())
	server := api.NewServer(cfg.Server.Address, aggregator, loop, store, authSvc)

	logger.L().Info("aptosaid listening",
		"address", cfg.Server.Address,
		"node_url", cfg.Chain.NodeURL,
		"auth", authSvc.Enabled())
	return server.Start(ctx)
}

// newAdvisor degrades to the disabled client when no credential is present.
func newAdvisor(cfg *config.Config) advisor.Client {
	apiKey := cfg.Advisor.APIKey()
	if apiKey == "" {
		logger.L().Warn("no completion credential configured, advice features disabled",
			"env", cfg.Advisor.APIKeyEnv)
		return advisor.Disabled{}
	}
	client, err := aiopenai.NewClient(aiopenai.Config{
		APIKey:  apiKey,
		BaseURL: cfg.Advisor.BaseURL,
		Model:   cfg.Advisor.Model,
		Timeout: cfg.Advisor.Timeout(),
	})
	if err != nil {
		logger.L().Warn("advisor init failed, advice features disabled", "error", err)
		return advisor.Disabled{}
	}
	return client
}

func newJournal(cfg *config.Config) (journal.Store, error) {
	switch cfg.Journal.Driver {
	case "", "memory":
		return journal.NewMemoryStore(), nil
	case "mysql":
		return journal.NewMySQLStore(cfg.Journal.DSN)
	default:
		return nil, fmt.Errorf("unknown journal driver: %s", cfg.Journal.Driver)
	}
}

func newNotifier(ctx context.Context, cfg *config.Config) (*notify.Fanout, error) {
	backends := []notify.Notifier{notify.NewLogNotifier()}
	switch cfg.Notify.Driver {
	case "", "log":
	case "redis":
		backend, err := notify.NewRedisNotifier(ctx, cfg.Notify.Redis)
		if err != nil {
			return nil, err
		}
		backends = append(backends, backend)
	case "rabbitmq":
		backend, err := notify.NewRabbitNotifier(cfg.Notify.RabbitMQ)
		if err != nil {
			return nil, err
		}
		backends = append(backends, backend)
	default:
		return nil, fmt.Errorf("unknown notify driver: %s", cfg.Notify.Driver)
	}
	return notify.NewFanout(backends...), nil
}

// newMarketSources assembles whatever sources the config enables. The depth
// source is always on when pools are defined; price and ticker are optional.
func newMarketSources(ctx context.Context, cfg *config.Config, client chain.Client, pools []dex.Pool) ([]market.Source, *market.TickerFeed, error) {
	var sources []market.Source

	if cfg.Market.PriceURL != "" && len(cfg.Market.Symbols) > 0 {
		price, err := market.NewPriceSource(market.PriceConfig{
			BaseURL: cfg.Market.PriceURL,
			Symbols: cfg.Market.Symbols,
		})
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, price)
	}

	if len(pools) > 0 {
		depth, err := market.NewDepthSource(client, pools)
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, depth)
	}

	var feed *market.TickerFeed
	if cfg.Market.TickerWS != "" {
		var err error
		feed, err = market.NewTickerFeed(ctx, cfg.Market.TickerWS)
		if err != nil {
			// A dead stream should not keep the daemon down.
			logger.L().Warn("ticker feed unavailable", "url", cfg.Market.TickerWS, "error", err)
		} else {
			sources = append(sources, feed)
		}
	}

	return sources, feed, nil
}
