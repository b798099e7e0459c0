package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/promptcash/paybot/pkg/app/api"
	"github.com/promptcash/paybot/pkg/bot"
	"github.com/promptcash/paybot/pkg/chain"
	"github.com/promptcash/paybot/pkg/config"
	"github.com/promptcash/paybot/pkg/confirm"
	"github.com/promptcash/paybot/pkg/intent"
	"github.com/promptcash/paybot/pkg/ledger"
	"github.com/promptcash/paybot/pkg/payment"
	"github.com/promptcash/paybot/pkg/pgutil"
	"github.com/promptcash/paybot/pkg/resolve"
	"github.com/promptcash/paybot/pkg/splits"
	"github.com/promptcash/paybot/pkg/wallet"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("paybot: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	dailyLimit, err := decimal.NewFromString(cfg.Payments.DailyLimit)
	if err != nil {
		return fmt.Errorf("invalid daily_limit: %w", err)
	}
	faucetAmount, err := decimal.NewFromString(cfg.Payments.FaucetAmount)
	if err != nil {
		return fmt.Errorf("invalid faucet_amount: %w", err)
	}
	prices := make(map[string]decimal.Decimal, len(cfg.Payments.TokenPrices))
	for sym, raw := range cfg.Payments.TokenPrices {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid token_prices[%s]: %w", sym, err)
		}
		prices[strings.ToUpper(sym)] = price
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close() }()
	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database))

	store := ledger.NewStore(db, cfg.Payments.LedgerRetries, cfg.Payments.LedgerRetryDelay, logger)

	chainClient := chain.Dial(ctx, cfg.Chain.RPCURL, chain.Options{
		ChainID:         cfg.Chain.ChainID,
		GasLimit:        cfg.Chain.GasLimit,
		ConfirmTimeout:  cfg.Chain.ConfirmTimeout,
		PollingInterval: cfg.Chain.PollingInterval,
		FallbackFee:     cfg.Chain.FallbackFee,
		MaxGasPrice:     cfg.Chain.MaxGasPrice,
	}, logger)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return fmt.Errorf("bot init: %w", err)
	}

	cache := confirm.NewCache(cfg.Payments.ConfirmationTTL, cfg.Payments.SweepInterval)
	go cache.Run(ctx)

	wallets := wallet.NewManager(cfg.Payments.KeySecret)
	resolver := resolve.NewResolver(store, cfg.Payments.Overrides, cfg.Payments.Contacts)
	notifier := bot.NewTelegramNotifier(botAPI)

	executor := payment.NewExecutor(store, chainClient, wallets, resolver, cache, notifier,
		payment.Options{
			RequestExpiry: cfg.Payments.RequestExpiry,
			DailyLimit:    dailyLimit,
		}, logger)
	coordinator := splits.NewCoordinator(store, chainClient, wallets, resolver, notifier, logger)

	parser := intent.NewParser(cfg.Payments.SupportedTokens)
	handler := bot.NewHandler(botAPI, parser, executor, coordinator,
		bot.Options{FaucetAmount: faucetAmount, TokenPrices: prices}, logger)

	if cfg.Monitoring.Enabled {
		monitor := api.NewServer(cfg.Monitoring, store, logger)
		go func() {
			if err := monitor.Run(ctx); err != nil {
				logger.Error("Monitoring server stopped", zap.Error(err))
			}
		}()
	}

	handler.Run(ctx, cfg.Telegram.UpdateTimeout)
	logger.Info("Shutdown complete")
	return nil
}
