// Package inventory builds the immutable resource snapshot and spend feeds a
// cycle evaluates against. Collectors for each provider run concurrently; a
// shared rate limiter keeps the engine polite toward provider APIs.
package inventory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/costgov/costgov/internal/domain/resource"
	"github.com/costgov/costgov/internal/domain/spend"
	"github.com/costgov/costgov/internal/pkg/logger"
	"github.com/costgov/costgov/internal/pkg/metrics"
)

// Collector lists the resources of one provider.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]*resource.Resource, error)
}

// SpendFeed returns period-to-date spend partitioned by a scope tag. An
// empty scopeTag yields a single entry keyed spend.TotalKey.
type SpendFeed interface {
	Name() string
	ScopeSpends(ctx context.Context, scopeTag string, periodStart, now time.Time) ([]spend.ScopeSpend, error)
}

// MetricsSource attaches utilization series to collected resources.
// Providers that cannot serve metrics leave resources untouched.
type MetricsSource interface {
	Attach(ctx context.Context, resources []*resource.Resource) error
}

// Service assembles snapshots from the configured collectors.
type Service struct {
	collectors []Collector
	metrics    MetricsSource
	limiter    *rate.Limiter
	log        *logger.Logger
}

// NewService creates a snapshot service. A nil metrics source is allowed;
// rps bounds the aggregate provider API request rate.
func NewService(metrics MetricsSource, rps float64, log *logger.Logger) *Service {
	if rps <= 0 {
		rps = 10
	}
	return &Service{
		metrics: metrics,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
		log:     log,
	}
}

// Register adds collectors. Collectors built against Limiter() share the
// service's request budget.
func (s *Service) Register(collectors ...Collector) {
	s.collectors = append(s.collectors, collectors...)
}

// Limiter exposes the shared request limiter for collectors to wait on.
func (s *Service) Limiter() *rate.Limiter {
	return s.limiter
}

// Snapshot collects from every provider concurrently and returns one
// consistent view. A failing collector drops only its own resources; the
// snapshot still forms from the rest, since a thinner snapshot is safer than
// no cycle at all.
func (s *Service) Snapshot(ctx context.Context) (*resource.Snapshot, error) {
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		resources []*resource.Resource
	)
	for _, c := range s.collectors {
		wg.Add(1)
		go func(c Collector) {
			defer wg.Done()
			started := time.Now()
			collected, err := c.Collect(ctx)
			metrics.RecordCollect(c.Name(), time.Since(started))
			if err != nil {
				s.log.WithError(err).With("collector", c.Name()).Error("resource collection failed")
				return
			}
			mu.Lock()
			resources = append(resources, collected...)
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		if err := s.metrics.Attach(ctx, resources); err != nil {
			s.log.ErrorWithErr(err, "metric attachment failed")
		}
	}

	return &resource.Snapshot{TakenAt: time.Now().UTC(), Resources: resources}, nil
}
