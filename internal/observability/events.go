package observability

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Mutation outcomes.
const (
	OutcomeUpserted = "upserted"
	OutcomeDeleted  = "deleted"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// MutationLogEntry describes what the synchronizer did with one mutation.
type MutationLogEntry struct {
	// Action is added, updated or deleted.
	Action string

	// ObjectType is comment, post, term or user.
	ObjectType string

	// ObjectID is the owning object.
	ObjectID int64

	// MetaIDs are the source rows affected.
	MetaIDs []int64

	// Key is the metadata key after rewrite filters ran.
	Key string

	// Outcome is one of the Outcome constants.
	Outcome string

	// Reason explains a skipped mutation.
	Reason string

	// Error contains the error message if the mutation failed.
	Error string

	// Duration is how long the engine work took. Must be non-negative.
	Duration time.Duration
}

// Validate checks that all required fields are present.
func (e *MutationLogEntry) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("observability: action is required")
	}
	if e.ObjectType == "" {
		return fmt.Errorf("observability: object_type is required")
	}
	switch e.Outcome {
	case OutcomeUpserted, OutcomeDeleted, OutcomeSkipped, OutcomeFailed:
	default:
		return fmt.Errorf("observability: unknown outcome %q", e.Outcome)
	}
	if e.Outcome == OutcomeFailed && e.Error == "" {
		return fmt.Errorf("observability: failed mutations must carry an error")
	}
	if e.Duration < 0 {
		return fmt.Errorf("observability: duration cannot be negative")
	}
	return nil
}

// ProbeLogEntry describes one capability probe run.
type ProbeLogEntry struct {
	Engine    string
	Catalog   int
	Available int
	Forced    bool
	Duration  time.Duration
}

// Validate checks that all required fields are present.
func (e *ProbeLogEntry) Validate() error {
	if e.Engine == "" {
		return fmt.Errorf("observability: engine is required")
	}
	if e.Available > e.Catalog {
		return fmt.Errorf("observability: available (%d) cannot exceed catalog (%d)", e.Available, e.Catalog)
	}
	if e.Duration < 0 {
		return fmt.Errorf("observability: duration cannot be negative")
	}
	return nil
}

// EventLogger records synchronizer and prober events.
type EventLogger interface {
	// LogMutation logs a mutation event.
	// Returns an error if the entry is invalid.
	LogMutation(ctx context.Context, entry MutationLogEntry) error

	// LogProbe logs a capability probe.
	LogProbe(ctx context.Context, entry ProbeLogEntry) error

	// Summary returns aggregated mutation statistics.
	Summary() *SyncSummary
}

// SyncSummary aggregates mutation outcomes.
type SyncSummary struct {
	Upserted      int        `json:"upserted"`
	Deleted       int        `json:"deleted"`
	Skipped       int        `json:"skipped"`
	Failed        int        `json:"failed"`
	TopFailedKeys []KeyCount `json:"top_failed_keys"`
}

// KeyCount is a metadata key with a count.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// ZerologEventLogger implements EventLogger on a zerolog.Logger.
type ZerologEventLogger struct {
	logger zerolog.Logger

	mu         sync.RWMutex
	summary    SyncSummary
	failedKeys map[string]int
}

// NewEventLogger creates an event logger writing through logger.
func NewEventLogger(logger zerolog.Logger) *ZerologEventLogger {
	return &ZerologEventLogger{
		logger:     logger,
		failedKeys: make(map[string]int),
	}
}

// LogMutation logs a mutation event.
func (l *ZerologEventLogger) LogMutation(ctx context.Context, entry MutationLogEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	ev := l.logger.Info()
	switch entry.Outcome {
	case OutcomeFailed:
		ev = l.logger.Error().Str("error", entry.Error)
	case OutcomeSkipped:
		ev = l.logger.Debug()
	}
	ev.Str("action", entry.Action).
		Str("object_type", entry.ObjectType).
		Int64("object_id", entry.ObjectID).
		Ints64("meta_ids", entry.MetaIDs).
		Str("meta_key", entry.Key).
		Str("outcome", entry.Outcome).
		Str("reason", entry.Reason).
		Int64("duration_ms", entry.Duration.Milliseconds()).
		Msg("shadow mutation")

	l.mu.Lock()
	defer l.mu.Unlock()
	switch entry.Outcome {
	case OutcomeUpserted:
		l.summary.Upserted++
	case OutcomeDeleted:
		l.summary.Deleted++
	case OutcomeSkipped:
		l.summary.Skipped++
	case OutcomeFailed:
		l.summary.Failed++
		l.failedKeys[entry.Key]++
	}
	return nil
}

// LogProbe logs a capability probe.
func (l *ZerologEventLogger) LogProbe(ctx context.Context, entry ProbeLogEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	l.logger.Info().
		Str("engine", entry.Engine).
		Int("catalog", entry.Catalog).
		Int("available", entry.Available).
		Bool("forced", entry.Forced).
		Int64("duration_ms", entry.Duration.Milliseconds()).
		Msg("capability probe")
	return nil
}

// Summary returns aggregated mutation statistics.
func (l *ZerologEventLogger) Summary() *SyncSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := l.summary
	s.TopFailedKeys = []KeyCount{}
	for key, count := range l.failedKeys {
		s.TopFailedKeys = append(s.TopFailedKeys, KeyCount{Key: key, Count: count})
	}
	sort.Slice(s.TopFailedKeys, func(i, j int) bool {
		if s.TopFailedKeys[i].Count != s.TopFailedKeys[j].Count {
			return s.TopFailedKeys[i].Count > s.TopFailedKeys[j].Count
		}
		return s.TopFailedKeys[i].Key < s.TopFailedKeys[j].Key
	})
	if len(s.TopFailedKeys) > 5 {
		s.TopFailedKeys = s.TopFailedKeys[:5]
	}
	return &s
}

// NoopLogger is an event logger that discards all events.
type NoopLogger struct{}

// NewNoopLogger creates a new no-op logger.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

// LogMutation does nothing and always succeeds.
func (l *NoopLogger) LogMutation(ctx context.Context, entry MutationLogEntry) error {
	return nil
}

// LogProbe does nothing and always succeeds.
func (l *NoopLogger) LogProbe(ctx context.Context, entry ProbeLogEntry) error {
	return nil
}

// Summary returns an empty summary.
func (l *NoopLogger) Summary() *SyncSummary {
	return &SyncSummary{TopFailedKeys: []KeyCount{}}
}
