package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trading-decision-bot/internal/feegate"
)

const (
	// gateStateKeyPrefix namespaces per-symbol gate snapshots.
	// Format: feegate:state:{symbol}
	gateStateKeyPrefix = "feegate:state"

	// gateStateTTL keeps snapshots well past the 24h rolling window they
	// feed, so a restart after a long outage still sees the open position.
	gateStateTTL = 7 * 24 * time.Hour
)

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// GateStateStore persists fee-gate state snapshots in Redis with an
// in-memory fallback, so a Redis outage never stalls the evaluation path.
type GateStateStore struct {
	client *redis.Client
	logger zerolog.Logger

	mu       sync.RWMutex
	fallback map[string]*feegate.State
}

// NewGateStateStore creates the store. A nil client means memory-only mode.
func NewGateStateStore(client *redis.Client, logger zerolog.Logger) *GateStateStore {
	s := &GateStateStore{
		client:   client,
		logger:   logger.With().Str("component", "gate_state_store").Logger(),
		fallback: make(map[string]*feegate.State),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Redis unavailable at startup, using in-memory fallback")
		} else {
			s.logger.Info().Msg("connected to Redis")
		}
	}
	return s
}

// DialRedis connects to Redis; a connection failure returns nil so callers
// fall back to memory-only operation.
func DialRedis(cfg RedisConfig, logger zerolog.Logger) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis dial failed, snapshots will stay in memory")
		client.Close()
		return nil
	}
	return client
}

func gateStateKey(symbol string) string {
	return fmt.Sprintf("%s:%s", gateStateKeyPrefix, symbol)
}

// Save writes one symbol's snapshot. Redis errors degrade to the fallback
// cache instead of propagating.
func (s *GateStateStore) Save(ctx context.Context, symbol string, state *feegate.State) error {
	s.mu.Lock()
	s.fallback[symbol] = state
	s.mu.Unlock()

	if s.client == nil {
		return nil
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling gate state for %s: %w", symbol, err)
	}

	if err := s.client.Set(ctx, gateStateKey(symbol), payload, gateStateTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Redis save failed, snapshot kept in memory")
	}
	return nil
}

// Load reads one symbol's snapshot. Returns nil with no error when nothing
// has been saved.
func (s *GateStateStore) Load(ctx context.Context, symbol string) (*feegate.State, error) {
	if s.client != nil {
		payload, err := s.client.Get(ctx, gateStateKey(symbol)).Bytes()
		switch {
		case err == redis.Nil:
			// fall through to the memory cache
		case err != nil:
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Redis load failed, trying in-memory fallback")
		default:
			var state feegate.State
			if err := json.Unmarshal(payload, &state); err != nil {
				return nil, fmt.Errorf("unmarshaling gate state for %s: %w", symbol, err)
			}
			return &state, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback[symbol], nil
}
