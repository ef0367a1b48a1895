// Package alerts computes the dashboard alert counts for expired and
// soon-to-expire licensees and caches them.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/clock"
	"github.com/MacJediWizard/licensee-manager/internal/lifecycle"
	"github.com/rs/zerolog"
)

// DefaultTTL is how long a cached summary is served.
const DefaultTTL = 5 * time.Minute

// Summary holds the alert counts shown on the dashboard.
type Summary struct {
	Expired      int       `json:"expired"`
	ExpiringSoon int       `json:"expiring_soon"`
	Total        int       `json:"total"`
	HorizonDays  int       `json:"horizon_days"`
	AsOf         time.Time `json:"as_of"`
}

// Evaluator classifies licensees by expiration.
type Evaluator interface {
	Evaluate(ctx context.Context, asOf time.Time, horizonDays int) (lifecycle.Evaluation, error)
}

// Cache stores serialized summaries.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate drops every cached summary.
	Invalidate(ctx context.Context) error
}

// Service builds alert summaries, serving them from the cache when possible.
type Service struct {
	evaluator Evaluator
	cache     Cache
	ttl       time.Duration
	logger    zerolog.Logger
}

// NewService creates a new alerts service. A nil cache disables caching.
func NewService(evaluator Evaluator, cache Cache, ttl time.Duration, logger zerolog.Logger) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		evaluator: evaluator,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With().Str("component", "alerts").Logger(),
	}
}

func cacheKey(asOf time.Time, horizonDays int) string {
	return fmt.Sprintf("summary:%s:%d", asOf.Format("2006-01-02"), horizonDays)
}

// Summary returns the alert counts for asOf. Cache failures are logged and
// the summary is computed directly.
func (s *Service) Summary(ctx context.Context, asOf time.Time, horizonDays int) (Summary, error) {
	day := clock.DateOf(asOf)
	key := cacheKey(day, horizonDays)

	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("alert cache read failed")
	} else if ok {
		var cached Summary
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		s.logger.Warn().Str("key", key).Msg("discarding malformed cached summary")
	}

	eval, err := s.evaluator.Evaluate(ctx, day, horizonDays)
	if err != nil {
		return Summary{}, fmt.Errorf("compute alert summary: %w", err)
	}

	summary := Summary{
		Expired:      len(eval.Expired),
		ExpiringSoon: len(eval.ExpiringSoon),
		Total:        len(eval.Expired) + len(eval.ExpiringSoon),
		HorizonDays:  eval.HorizonDays,
		AsOf:         eval.AsOf,
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return Summary{}, fmt.Errorf("encode alert summary: %w", err)
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("alert cache write failed")
	}

	return summary, nil
}

// Invalidate drops cached summaries, for use after licensee statuses change.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("alert cache invalidation failed")
	}
}

// NoopCache never stores anything.
type NoopCache struct{}

// Get always reports a miss.
func (NoopCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set discards the value.
func (NoopCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

// Invalidate does nothing.
func (NoopCache) Invalidate(context.Context) error {
	return nil
}
