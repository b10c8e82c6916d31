// Package redisstore persists the current position in a shared Redis
// instance so an API-facing process and the loop process see the same state.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"antigravity/internal/domain"
	"antigravity/internal/ports"
)

const (
	positionKey   = "trader:position"
	entryPriceKey = "trader:entry_price"
)

// Config holds configuration for the Redis position store.
type Config struct {
	Addr     string
	Password string
	DB       int
	Symbol   string
	Logger   ports.Logger
}

// Store implements ports.PositionStore on Redis, degrading to an in-process
// mirror when Redis is unreachable. The mirror is written on every mutation,
// so a mid-run outage keeps the latest state, and mutations that missed
// Redis are pushed back on reconnect. A process restart while degraded
// resets the position to NONE, which callers accept as a documented gap
// rather than a guarantee. There is no cross-process locking.
// redisCmd is the slice of the Redis client the store uses. Tests substitute
// a fake to drive outage and reconnect paths.
type redisCmd interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	MSet(ctx context.Context, values ...interface{}) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

type Store struct {
	rdb    redisCmd
	logger ports.Logger
	symbol string

	mu       sync.Mutex
	mem      domain.Position
	degraded bool
	// dirty marks a mutation that landed only in the mirror during an
	// outage. Until it is pushed back, the Redis keys are stale and must
	// not be trusted over the mirror.
	dirty bool
}

// New creates the store and pings Redis. An unreachable Redis is not fatal:
// the store starts in degraded (memory-only) mode with a warning and retries
// Redis on every subsequent call.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the position store")
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("symbol is required for the position store")
	}

	s := &Store{
		logger: cfg.Logger,
		symbol: cfg.Symbol,
		mem:    domain.Position{Symbol: cfg.Symbol, Side: domain.SideNone},
	}

	s.rdb = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		s.degraded = true
		cfg.Logger.Warn(ctx, "Position store degraded to in-memory mode; position will not survive a restart", map[string]interface{}{
			"addr":  cfg.Addr,
			"error": err.Error(),
		})
	} else {
		cfg.Logger.Info(ctx, "Position store connected to Redis", map[string]interface{}{"addr": cfg.Addr})
	}

	return s, nil
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// markDegraded flips the store into degraded mode, logging the transition
// once rather than on every failing call.
func (s *Store) markDegraded(ctx context.Context, op string, err error) {
	if !s.degraded {
		s.degraded = true
		s.logger.Warn(ctx, "Position store lost Redis; continuing with in-memory position only", map[string]interface{}{
			"operation": op,
			"error":     err.Error(),
		})
	}
}

func (s *Store) markHealthy(ctx context.Context) {
	if s.degraded {
		s.degraded = false
		s.logger.Info(ctx, "Position store reconnected to Redis")
	}
}

// Get returns the current position. On a Redis failure it falls back to the
// in-process mirror.
func (s *Store) Get(ctx context.Context) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vals, err := s.rdb.MGet(ctx, positionKey, entryPriceKey).Result()
	if err != nil {
		s.markDegraded(ctx, "get", err)
		return s.mem, nil
	}

	if s.dirty {
		// The mirror moved during the outage; push it back before trusting
		// reads again, otherwise the stale keys would revert the position.
		if err := s.writeBack(ctx); err != nil {
			s.markDegraded(ctx, "get", err)
			return s.mem, nil
		}
		s.dirty = false
		s.markHealthy(ctx)
		return s.mem, nil
	}
	s.markHealthy(ctx)

	pos := domain.Position{Symbol: s.symbol, Side: domain.SideNone}
	if sideStr, ok := vals[0].(string); ok {
		pos.Side = domain.ParseSide(sideStr)
	}
	if pos.Side != domain.SideNone {
		entryStr, ok := vals[1].(string)
		if !ok {
			return domain.Position{}, fmt.Errorf("%w: %s is set but %s is missing", ports.ErrStoreUnavailable, positionKey, entryPriceKey)
		}
		entry, err := strconv.ParseFloat(entryStr, 64)
		if err != nil || entry <= 0 {
			return domain.Position{}, fmt.Errorf("%w: invalid entry price %q", ports.ErrStoreUnavailable, entryStr)
		}
		pos.EntryPrice = entry
		pos.OpenedAt = s.mem.OpenedAt // Redis stores no open time; best effort from this process.
	}

	s.mem = pos
	return pos, nil
}

// Set replaces the position wholesale with an open position.
func (s *Store) Set(ctx context.Context, side domain.Side, entryPrice float64) error {
	if side == domain.SideNone {
		return fmt.Errorf("%w: cannot set position to NONE, use Clear", ports.ErrInvalidRequest)
	}
	if entryPrice <= 0 {
		return fmt.Errorf("%w: entry price must be positive, got %f", ports.ErrInvalidRequest, entryPrice)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.mem = domain.Position{
		Symbol:     s.symbol,
		Side:       side,
		EntryPrice: entryPrice,
		OpenedAt:   time.Now().UTC(),
	}

	err := s.rdb.MSet(ctx,
		positionKey, string(side),
		entryPriceKey, strconv.FormatFloat(entryPrice, 'f', -1, 64),
	).Err()
	if err != nil {
		s.markDegraded(ctx, "set", err)
		s.dirty = true
		return nil
	}
	s.markHealthy(ctx)
	s.dirty = false
	return nil
}

// Clear resets the position to flat.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mem = domain.Position{Symbol: s.symbol, Side: domain.SideNone}

	err := s.rdb.MSet(ctx, positionKey, string(domain.SideNone), entryPriceKey, "0").Err()
	if err != nil {
		s.markDegraded(ctx, "clear", err)
		s.dirty = true
		return nil
	}
	s.markHealthy(ctx)
	s.dirty = false
	return nil
}

// writeBack pushes the in-process mirror to Redis. Caller holds mu.
func (s *Store) writeBack(ctx context.Context) error {
	entry := "0"
	if s.mem.Side != domain.SideNone {
		entry = strconv.FormatFloat(s.mem.EntryPrice, 'f', -1, 64)
	}
	return s.rdb.MSet(ctx, positionKey, string(s.mem.Side), entryPriceKey, entry).Err()
}

// Compile-time interface check.
var _ ports.PositionStore = (*Store)(nil)
