// Package storage persists trade history in PostgreSQL and gate state
// snapshots in Redis. Both backends are optional at runtime; the engine
// can run on the in-memory fallbacks during development.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"trading-decision-bot/internal/market"
)

// PostgresConfig holds database connection settings
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// DSN builds the pgx connection string
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// TradeStore is the PostgreSQL-backed trade history
type TradeStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewTradeStore connects to PostgreSQL and verifies the connection
func NewTradeStore(ctx context.Context, cfg PostgresConfig, logger zerolog.Logger) (*TradeStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log := logger.With().Str("component", "trade_store").Logger()
	log.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &TradeStore{pool: pool, logger: log}, nil
}

// Migrate creates the trades table if it does not exist
func (s *TradeStore) Migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS trades (
			id         UUID PRIMARY KEY,
			symbol     VARCHAR(20) NOT NULL,
			side       VARCHAR(10) NOT NULL,
			amount     DOUBLE PRECISION NOT NULL,
			price      DOUBLE PRECISION NOT NULL,
			fee        DOUBLE PRECISION NOT NULL,
			pnl        DOUBLE PRECISION,
			executed_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_symbol_time ON trades (symbol, executed_at DESC);`

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("running trade migrations: %w", err)
	}
	s.logger.Info().Msg("trade schema ready")
	return nil
}

// Record inserts an executed trade
func (s *TradeStore) Record(ctx context.Context, trade market.TradeRecord) error {
	const query = `
		INSERT INTO trades (id, symbol, side, amount, price, fee, pnl, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		trade.ID, trade.Symbol, trade.Side, trade.Amount,
		trade.Price, trade.Fee, trade.PnL, trade.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting trade %s: %w", trade.ID, err)
	}
	return nil
}

// RecentTrades returns trades for a symbol within the window, oldest first,
// which is the order the fee gate expects when rebuilding its state.
func (s *TradeStore) RecentTrades(ctx context.Context, symbol string, window time.Duration) ([]market.TradeRecord, error) {
	const query = `
		SELECT id, symbol, side, amount, price, fee, pnl, executed_at
		FROM trades
		WHERE symbol = $1 AND executed_at >= $2
		ORDER BY executed_at ASC`

	cutoff := time.Now().Add(-window)
	rows, err := s.pool.Query(ctx, query, symbol, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying recent trades for %s: %w", symbol, err)
	}
	defer rows.Close()

	var trades []market.TradeRecord
	for rows.Next() {
		var t market.TradeRecord
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.Amount, &t.Price, &t.Fee, &t.PnL, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning trade row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trade rows: %w", err)
	}
	return trades, nil
}

// Close releases the connection pool
func (s *TradeStore) Close() {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info().Msg("database connection closed")
	}
}
