package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trading-decision-bot/config"
	"trading-decision-bot/internal/api"
	"trading-decision-bot/internal/backtest"
	"trading-decision-bot/internal/decision"
	"trading-decision-bot/internal/engine"
	"trading-decision-bot/internal/events"
	"trading-decision-bot/internal/feegate"
	"trading-decision-bot/internal/gateway"
	"trading-decision-bot/internal/market"
	"trading-decision-bot/internal/regime"
	"trading-decision-bot/internal/reversal"
	"trading-decision-bot/internal/risk"
	"trading-decision-bot/internal/sentiment"
	"trading-decision-bot/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.json", "path to JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := newLogger(cfg.Logging)
	logger.Info().Strs("symbols", cfg.Symbols).Msg("starting trading decision pipeline")

	clock := market.RealClock{}
	bus := events.NewBus()

	// Analysis modules and the shared pipeline
	pipeline := engine.NewPipeline(
		regime.NewClassifier(cfg.Regime),
		sentiment.NewAggregator(cfg.Sentiment),
		reversal.NewDetector(cfg.Reversal),
		risk.NewCalculator(cfg.Risk),
		decision.NewAggregator(cfg.Decision),
	)

	gate := feegate.NewGate(cfg.FeeGate, clock, logger)

	// Trade history: PostgreSQL when configured, in-memory otherwise
	var history market.TradeHistoryStore
	if cfg.Postgres.Enabled {
		store, err := storage.NewTradeStore(context.Background(), cfg.Postgres.PostgresConfig, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
		}
		defer store.Close()
		if err := store.Migrate(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("failed to run trade migrations")
		}
		history = store
	} else {
		logger.Warn().Msg("PostgreSQL disabled, trade history is in-memory only")
		history = storage.NewMemoryTradeStore()
	}

	// Gate-state snapshots: Redis when configured, in-memory fallback always
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = storage.DialRedis(cfg.Redis.RedisConfig, logger)
	}
	stateStore := storage.NewGateStateStore(redisClient, logger)

	sim := market.NewSimulatedSource()
	paper := gateway.NewPaper(cfg.Gateway, clock, logger)

	eng := engine.New(cfg.Engine, pipeline, gate, sim, sim, history, paper, bus, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.SeedFromHistory(ctx, cfg.Symbols); err != nil {
		logger.Error().Err(err).Msg("failed to seed gate state from history, starting fresh")
	}

	// A persisted snapshot is richer than the history-derived seed (it
	// carries the exact entry fee and breakeven), so it wins when present
	for _, symbol := range cfg.Symbols {
		if state, err := stateStore.Load(ctx, symbol); err == nil && state != nil {
			gate.Restore(symbol, state)
			logger.Info().Str("symbol", symbol).Msg("gate state restored from snapshot")
		}
	}

	// Persist a gate snapshot after every executed or rejected trade
	persistSnapshot := func(event events.Event) {
		symbol, _ := event.Data["symbol"].(string)
		if symbol == "" {
			return
		}
		if state := gate.Snapshot(symbol); state != nil {
			if err := stateStore.Save(ctx, symbol, state); err != nil {
				logger.Error().Err(err).Str("symbol", symbol).Msg("failed to persist gate state")
			}
		}
	}
	bus.Subscribe(events.EventTradeExecuted, persistSnapshot)
	bus.Subscribe(events.EventTradeRejected, persistSnapshot)

	backtester := backtest.NewEngine(pipeline, cfg.FeeGate, logger)
	server := api.NewServer(cfg.Server, eng, backtester, sim, bus, logger)

	go evaluationLoop(ctx, eng, cfg.Symbols, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server stopped")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}

// evaluationLoop re-evaluates every configured symbol once per minute.
// Symbols are independent; the engine serializes evaluations per symbol.
func evaluationLoop(ctx context.Context, eng *engine.Engine, symbols []string, logger zerolog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, symbol := range symbols {
				go func(sym string) {
					if _, err := eng.EvaluateSymbol(ctx, sym); err != nil {
						logger.Error().Err(err).Str("symbol", sym).Msg("evaluation failed")
					}
				}(symbol)
			}
		}
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.JSONFormat {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
