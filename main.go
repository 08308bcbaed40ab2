package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dex-agent-bot/config"
	"dex-agent-bot/internal/ai/llm"
	"dex-agent-bot/internal/api"
	"dex-agent-bot/internal/autopilot"
	"dex-agent-bot/internal/database"
	"dex-agent-bot/internal/events"
	"dex-agent-bot/internal/indicators"
	"dex-agent-bot/internal/learning"
	"dex-agent-bot/internal/logging"
	"dex-agent-bot/internal/market"
	"dex-agent-bot/internal/signals"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	}, zlog)
	if err != nil {
		logger.Fatal("Database connection failed", "error", err)
	}
	defer db.Close()
	store := database.NewPGStore(db, zlog)

	redisAddr := ""
	if cfg.RedisConfig.Enabled {
		redisAddr = cfg.RedisConfig.Addr
	}
	redisState, err := database.NewRedisState(redisAddr, cfg.RedisConfig.Password, cfg.RedisConfig.DB, zlog)
	if err != nil {
		logger.Fatal("Redis connection failed", "error", err)
	}
	defer redisState.Close()

	eventBus := events.NewBus()
	logger.Info("Event bus initialized")

	// Market data sources
	srcTimeout := time.Duration(cfg.SourcesConfig.RequestTimeoutSec) * time.Second
	pairs := market.NewDexScreenerClient(cfg.SourcesConfig.DexScreenerBaseURL, srcTimeout, logger)
	ohlcv := market.NewGeckoTerminalClient(cfg.SourcesConfig.GeckoTerminalBaseURL, srcTimeout, logger)
	social := market.NewLunarCrushClient(cfg.SourcesConfig.LunarCrushAPIKey, srcTimeout, logger)
	news := market.NewCryptoPanicClient(cfg.SourcesConfig.CryptoPanicAPIKey, srcTimeout, logger)
	fearGreed := market.NewAlternativeMeClient(cfg.SourcesConfig.FearGreedBaseURL, srcTimeout, logger)
	smartMoney := market.NewSmartMoneyTracker(logger)
	liquidity := market.NewLiquidityTracker(logger)

	// Signal engine
	indicatorEngine := indicators.NewEngine(
		cfg.EngineConfig.BarHistoryMax,
		time.Duration(cfg.EngineConfig.IndicatorCacheTTLMs)*time.Millisecond,
	)
	builder := signals.NewBuilder(signals.Deps{
		Pairs:      pairs,
		OHLCV:      ohlcv,
		SmartMoney: smartMoney,
		Social:     social,
		News:       news,
		FearGreed:  fearGreed,
		Liquidity:  liquidity,
		Safety:     database.NewSafetyAdapter(store),
		Observers:  []signals.PairObserver{smartMoney, liquidity},
	}, indicatorEngine, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Learned signal performance
	learn := learning.NewStore(store, logger)
	if err := learn.Load(ctx); err != nil {
		logger.Warn("Learning state load failed, starting empty", "error", err)
	}

	// Decision oracle
	oracle := llm.NewClient(&llm.ClientConfig{
		Provider:    llm.Provider(cfg.OracleConfig.Provider),
		APIKey:      cfg.OracleConfig.APIKey,
		Model:       cfg.OracleConfig.Model,
		MaxTokens:   cfg.OracleConfig.MaxTokens,
		Temperature: cfg.OracleConfig.Temperature,
		Timeout:     time.Duration(cfg.OracleConfig.TimeoutSeconds) * time.Second,
	})
	decider := llm.NewDecisionEngine(oracle, learn, logger)

	// Agent runner
	gate := autopilot.NewGate(learn, redisState)
	trackers := autopilot.NewTrackerSet()
	runner := autopilot.NewRunner(store, builder, decider, gate, trackers, learn, eventBus, redisState, logger, autopilot.Options{
		CyclePeriod:          time.Duration(cfg.EngineConfig.CyclePeriodMs) * time.Millisecond,
		SignalCacheTTL:       time.Duration(cfg.EngineConfig.SignalCacheTTLMs) * time.Millisecond,
		DefaultStopLossPct:   cfg.EngineConfig.DefaultStopLossPct,
		DefaultTakeProfitPct: cfg.EngineConfig.DefaultTakeProfitPct,
	})
	runner.Start(ctx)

	// HTTP/WS API
	server := api.NewServer(api.ServerConfig{
		Host:           cfg.ServerConfig.Host,
		Port:           cfg.ServerConfig.Port,
		ProductionMode: true,
		AllowedOrigins: splitOrigins(cfg.ServerConfig.AllowedOrigins),
	}, store, runner, builder, eventBus, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("API server exited", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down")
	cancel()
	runner.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("API shutdown failed", "error", err)
	}
	logger.Info("Shutdown complete")
}

// splitOrigins turns the comma-separated config value into a list; "*"
// or empty means allow all
func splitOrigins(origins string) []string {
	if origins == "" || origins == "*" {
		return nil
	}
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
