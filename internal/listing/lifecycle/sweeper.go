// Package lifecycle expires listings once they pass their maximum age.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/listing/domain"
	"github.com/urbanestate/listing-service/internal/platform/logger"
	"github.com/urbanestate/listing-service/internal/platform/metrics"
)

// DefaultMaxAge is how long a listing stays live.
const DefaultMaxAge = 30 * 24 * time.Hour

var tracer = otel.Tracer("listing-service/lifecycle")

// ExpiredEvent is published after a sweep that expired at least one listing.
type ExpiredEvent struct {
	Cutoff time.Time `json:"cutoff"`
	Count  int64     `json:"count"`
	RanAt  time.Time `json:"ran_at"`
}

// Sweeper performs one expiry pass: every listing that is not yet expired and
// was created strictly before now-maxAge becomes expired.
type Sweeper struct {
	repo      domain.ListingRepository
	maxAge    time.Duration
	now       func() time.Time
	publisher domain.EventPublisher
	metrics   *metrics.MetricsManager
	logger    *logger.Logger
}

type SweeperOption func(*Sweeper)

func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

func WithPublisher(p domain.EventPublisher) SweeperOption {
	return func(s *Sweeper) { s.publisher = p }
}

func WithMetrics(m *metrics.MetricsManager) SweeperOption {
	return func(s *Sweeper) { s.metrics = m }
}

func NewSweeper(repo domain.ListingRepository, maxAge time.Duration, log *logger.Logger, opts ...SweeperOption) *Sweeper {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	s := &Sweeper{
		repo:   repo,
		maxAge: maxAge,
		now:    time.Now,
		logger: log.Named("ExpirySweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run expires stale listings and returns how many changed. Running it again
// with no time elapsed changes nothing.
func (s *Sweeper) Run(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.ExpirySweep")
	defer span.End()

	started := s.now()
	cutoff := started.Add(-s.maxAge)
	p := domain.Predicate{
		StatusNot:     domain.StatusExpired,
		CreatedBefore: &cutoff,
	}

	n, err := s.repo.BulkSetStatus(ctx, p, domain.StatusExpired)
	s.metrics.ObserveSweep(n, s.now().Sub(started), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("expiry sweep failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, fmt.Errorf("expire listings created before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	span.SetAttributes(attribute.Int64("listings.expired", n))

	if n == 0 {
		s.logger.Debug("expiry sweep found nothing to expire", zap.Time("cutoff", cutoff))
		return 0, nil
	}
	s.logger.Info("listings expired", zap.Int64("count", n), zap.Time("cutoff", cutoff))

	if s.publisher != nil {
		event := ExpiredEvent{Cutoff: cutoff, Count: n, RanAt: started}
		if err := s.publisher.Publish(ctx, domain.SubjectListingExpired, event); err != nil {
			s.logger.Warn("failed to publish expiry event", zap.Error(err))
		}
	}
	return n, nil
}
