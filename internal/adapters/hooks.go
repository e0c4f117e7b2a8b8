package adapters

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/qustavo/sqlhooks/v2"
	"github.com/rs/zerolog"
)

// DefaultSlowQueryThreshold is used when no threshold is configured.
const DefaultSlowQueryThreshold = 500 * time.Millisecond

type beginKey struct{}

// QueryHooks observes every statement sent through a wrapped driver. Slow
// statements are logged at warn level and failures at error level unless
// suppression is on.
type QueryHooks struct {
	logger     zerolog.Logger
	slow       time.Duration
	suppressed atomic.Bool
}

// NewQueryHooks creates hooks logging to logger. A zero slow threshold uses
// DefaultSlowQueryThreshold.
func NewQueryHooks(logger zerolog.Logger, slow time.Duration) *QueryHooks {
	if slow <= 0 {
		slow = DefaultSlowQueryThreshold
	}
	return &QueryHooks{logger: logger, slow: slow}
}

// Suppress toggles error logging and returns the previous setting.
func (h *QueryHooks) Suppress(on bool) bool {
	return h.suppressed.Swap(on)
}

// Suppressed reports whether error logging is currently off.
func (h *QueryHooks) Suppressed() bool {
	return h.suppressed.Load()
}

// Before implements sqlhooks.Hooks.
func (h *QueryHooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	return context.WithValue(ctx, beginKey{}, time.Now()), nil
}

// After implements sqlhooks.Hooks.
func (h *QueryHooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	begin, ok := ctx.Value(beginKey{}).(time.Time)
	if !ok {
		return ctx, nil
	}
	if d := time.Since(begin); d > h.slow {
		h.logger.Warn().
			Str("query", query).
			Int("args", len(args)).
			Dur("took", d).
			Msg("slow sql")
	}
	return ctx, nil
}

// OnError implements sqlhooks.OnErrorer. The error is always passed through.
func (h *QueryHooks) OnError(ctx context.Context, err error, query string, args ...interface{}) error {
	if h.suppressed.Load() || err == driver.ErrSkip {
		return err
	}
	h.logger.Error().Err(err).Str("query", query).Msg("sql error")
	return err
}

var driverSeq atomic.Int64

// OpenWithHooks registers drv wrapped by hooks under a fresh driver name and
// opens dsn through it. Every adapter gets its own registration so that
// suppression never leaks between adapters.
func OpenWithHooks(base string, drv driver.Driver, dsn string, hooks *QueryHooks) (*sql.DB, error) {
	name := fmt.Sprintf("%sWithHooks%d", base, driverSeq.Add(1))
	sql.Register(name, sqlhooks.Wrap(drv, hooks))
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open failed: %w", base, err)
	}
	return db, nil
}
