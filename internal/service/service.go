package service

import (
	"context"
	"time"

	"github.com/Africahassucceed/celebsbridgenew/internal/catalog"
	"github.com/Africahassucceed/celebsbridgenew/internal/config"
	"github.com/Africahassucceed/celebsbridgenew/internal/metrics"
	"github.com/Africahassucceed/celebsbridgenew/internal/notify"
	"github.com/Africahassucceed/celebsbridgenew/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Catalog resolves celebrity price and active flag.
type Catalog interface {
	Lookup(ctx context.Context, id string) (catalog.Celebrity, error)
}

// HandleIssuer produces time-bounded download URLs for stored assets.
type HandleIssuer interface {
	IssueHandle(ctx context.Context, ref string, ttl time.Duration) (string, time.Time, error)
}

// Emitter is fire-and-forget; it must not report failures to the caller.
type Emitter interface {
	Emit(ctx context.Context, evt notify.Event)
}

type Options struct {
	OpTimeout       time.Duration
	MaxAttempts     int
	Backoff         time.Duration
	HandleTTL       time.Duration
	RevenueMode     string
	LegacyFlatPrice decimal.Decimal
	Metrics         *metrics.Metrics
	Now             func() time.Time
}

// OptionsFromConfig maps the config sections the service reads.
func OptionsFromConfig(cfg *config.Config, m *metrics.Metrics) (Options, error) {
	flat, err := decimal.NewFromString(cfg.Stats.LegacyFlatPrice)
	if err != nil {
		return Options{}, err
	}
	return Options{
		OpTimeout:       cfg.Store.OpTimeout,
		MaxAttempts:     cfg.Lifecycle.MaxAttempts,
		Backoff:         cfg.Lifecycle.Backoff,
		HandleTTL:       cfg.Blob.HandleTTL,
		RevenueMode:     cfg.Stats.RevenueMode,
		LegacyFlatPrice: flat,
		Metrics:         m,
	}, nil
}

// ShoutoutService glues the request lifecycle and the repository.
type ShoutoutService struct {
	repo    repo.RepositoryInterface
	catalog Catalog
	blobs   HandleIssuer
	events  Emitter
	opts    Options
	log     *zap.SugaredLogger
}

// NewShoutoutService returns ShoutoutService.
func NewShoutoutService(r repo.RepositoryInterface, cat Catalog, blobs HandleIssuer, events Emitter, opts Options, logger *zap.SugaredLogger) *ShoutoutService {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.HandleTTL <= 0 {
		opts.HandleTTL = 15 * time.Minute
	}
	if opts.RevenueMode == "" {
		opts.RevenueMode = config.RevenuePerRequest
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ShoutoutService{repo: r, catalog: cat, blobs: blobs, events: events, opts: opts, log: logger}
}

func (s *ShoutoutService) now() time.Time { return s.opts.Now().UTC() }

// opContext bounds one store operation by the configured timeout on top of the caller's deadline.
func (s *ShoutoutService) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.OpTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.OpTimeout)
}

func (s *ShoutoutService) emit(ctx context.Context, evt notify.Event) {
	if s.events == nil {
		return
	}
	// the transition is already committed; the caller going away must not drop the event
	s.events.Emit(context.WithoutCancel(ctx), evt)
}

// backoff waits before retry attempt n (1-based) or returns early when ctx ends.
func (s *ShoutoutService) backoff(ctx context.Context, attempt int) error {
	if s.opts.Backoff <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(attempt) * s.opts.Backoff):
		return nil
	}
}
