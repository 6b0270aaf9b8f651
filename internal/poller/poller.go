package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"latencyglobe/internal/model"
	"latencyglobe/internal/telemetry"
	"latencyglobe/internal/tracker"
)

const (
	DefaultInterval        = 5 * time.Second
	DefaultClockInterval   = time.Second
	DefaultFetchTimeout    = 4 * time.Second
	DefaultBreakerFailures = 5
	DefaultBreakerTimeout  = 30 * time.Second
)

// ErrInFlight is returned by PollOnce when a fetch is already running.
var ErrInFlight = errors.New("fetch already in flight")

// Fetcher produces the current link snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.Link, error)
}

// Config controls poll timing and the breaker around the fetcher.
type Config struct {
	Interval        time.Duration
	ClockInterval   time.Duration
	FetchTimeout    time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	Logger          *zap.Logger
	Metrics         *telemetry.Metrics
	// Now overrides the clock stamped on applied batches.
	Now func() time.Time
}

// Poller periodically fetches snapshots into a tracker.
type Poller struct {
	cfg      Config
	fetcher  Fetcher
	tracker  *tracker.Tracker
	breaker  *gobreaker.CircuitBreaker
	log      *zap.Logger
	inFlight atomic.Bool
	wg       sync.WaitGroup
}

// New wires a poller. Zero config fields take their defaults.
func New(f Fetcher, t *tracker.Tracker, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ClockInterval <= 0 {
		cfg.ClockInterval = DefaultClockInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultBreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = DefaultBreakerTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	p := &Poller{
		cfg:     cfg,
		fetcher: f,
		tracker: t,
		log:     cfg.Logger.Named("poller"),
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "latency-fetch",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return p
}

// Run fetches immediately and then on every interval until ctx is done.
// A tick that lands while a fetch is still running is skipped. On return
// no fetch result will be applied any more.
func (p *Poller) Run(ctx context.Context) error {
	fetchTicker := time.NewTicker(p.cfg.Interval)
	defer fetchTicker.Stop()
	clockTicker := time.NewTicker(p.cfg.ClockInterval)
	defer clockTicker.Stop()
	defer p.wg.Wait()

	p.log.Info("polling started",
		zap.Duration("interval", p.cfg.Interval),
		zap.Duration("clock_interval", p.cfg.ClockInterval))

	p.trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			p.log.Info("polling stopped")
			return ctx.Err()
		case <-fetchTicker.C:
			p.trigger(ctx)
		case <-clockTicker.C:
			p.tracker.Tick(p.cfg.Now())
		}
	}
}

// PollOnce runs a single fetch synchronously.
func (p *Poller) PollOnce(ctx context.Context) error {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.cfg.Metrics.ObserveSkip()
		return ErrInFlight
	}
	defer p.inFlight.Store(false)
	return p.poll(ctx)
}

func (p *Poller) trigger(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.cfg.Metrics.ObserveSkip()
		p.log.Debug("skipping tick, fetch still in flight")
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)
		_ = p.poll(ctx)
	}()
}

func (p *Poller) poll(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	out, err := p.breaker.Execute(func() (any, error) {
		return p.fetcher.Fetch(fetchCtx)
	})
	took := time.Since(start)

	// Torn down while the fetch was running; drop the result.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err != nil {
		p.cfg.Metrics.ObserveFailure(took)
		st := p.tracker.MarkFailure(err)
		p.log.Warn("latency fetch failed",
			zap.Error(err),
			zap.Int("consecutive_failures", st.ConsecutiveFailures),
			zap.Bool("stale", st.Stale))
		return err
	}

	links, _ := out.([]model.Link)
	res := p.tracker.Apply(links, p.cfg.Now())
	p.cfg.Metrics.ObservePoll(took, res.Links, res.History)
	if res.Seeded > 0 {
		p.cfg.Metrics.ObserveSeed(res.Seeded, res.History)
	}
	p.log.Debug("latency snapshot applied",
		zap.Int("links", res.Links),
		zap.Int("history", res.History),
		zap.Duration("took", took))
	return nil
}
