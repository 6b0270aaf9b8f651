package tracker

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"latencyglobe/internal/geo"
	"latencyglobe/internal/history"
	"latencyglobe/internal/model"
)

// DefaultFailureThreshold is the number of consecutive failed fetches after
// which the state is reported stale.
const DefaultFailureThreshold = 3

// Config configures a Tracker.
type Config struct {
	HistoryCap       int
	SeedThreshold    int
	FailureThreshold int
	// SeedRand drives the demo backfill. nil uses a time-seeded source.
	SeedRand geo.Jitter
	Logger   *zap.Logger
}

// Status describes the health of the poll loop.
type Status struct {
	LastSuccess         time.Time
	LastError           string
	ConsecutiveFailures int
	Stale               bool
}

// State is a read-only snapshot handed to consumers. Its slices are never
// written after the snapshot is taken.
type State struct {
	Session string
	Links   []model.Link
	History []model.Sample
	Now     time.Time
	Seeded  bool
	Status  Status
}

// ApplyResult reports what one successful fetch changed.
type ApplyResult struct {
	Links    int
	Recorded int
	Seeded   int
	History  int
}

// Tracker owns the live links, the bounded history and the seed state. The
// poll loop writes to it; HTTP handlers and stream subscribers read.
type Tracker struct {
	mu               sync.RWMutex
	session          string
	links            []model.Link
	history          *history.Buffer
	seeder           *history.Seeder
	now              time.Time
	status           Status
	failureThreshold int
	closed           bool

	subsMu     sync.Mutex
	subs       map[string]chan State
	subsClosed bool

	log *zap.Logger
}

// New returns a tracker with empty containers.
func New(cfg Config) *Tracker {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	seedRand := cfg.SeedRand
	if seedRand == nil {
		seedRand = defaultRand()
	}
	session := uuid.NewString()
	return &Tracker{
		session:          session,
		links:            []model.Link{},
		history:          history.NewBuffer(cfg.HistoryCap),
		seeder:           history.NewSeeder(cfg.SeedThreshold, seedRand),
		now:              time.Now().UTC(),
		failureThreshold: threshold,
		subs:             make(map[string]chan State),
		log:              logger.With(zap.String("session", session)),
	}
}

// Apply replaces the live links and records them into history as one
// batch, then runs the demo backfill if it is still due.
func (t *Tracker) Apply(links []model.Link, now time.Time) ApplyResult {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ApplyResult{}
	}
	t.links = append(make([]model.Link, 0, len(links)), links...)
	t.history.Record(links)
	seeded := t.seeder.MaybeSeed(t.history, links, now)
	if seeded > 0 {
		t.log.Info("seeded demo history",
			zap.Int("samples", seeded),
			zap.Int("history", t.history.Len()))
	}
	if t.status.Stale {
		t.log.Info("latency feed recovered", zap.Int("failures", t.status.ConsecutiveFailures))
	}
	t.status = Status{LastSuccess: now}
	if now.After(t.now) {
		t.now = now
	}
	res := ApplyResult{
		Links:    len(links),
		Recorded: len(links),
		Seeded:   seeded,
		History:  t.history.Len(),
	}
	state := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(state)
	return res
}

// MarkFailure records a failed fetch. Links and history are left as they
// were. It returns the updated status.
func (t *Tracker) MarkFailure(err error) Status {
	t.mu.Lock()
	if t.closed {
		st := t.status
		t.mu.Unlock()
		return st
	}
	t.status.ConsecutiveFailures++
	if err != nil {
		t.status.LastError = err.Error()
	}
	becameStale := !t.status.Stale && t.status.ConsecutiveFailures >= t.failureThreshold
	if becameStale {
		t.status.Stale = true
		t.log.Warn("latency feed stale",
			zap.Int("failures", t.status.ConsecutiveFailures),
			zap.Time("last_success", t.status.LastSuccess))
	}
	st := t.status
	var state State
	if becameStale {
		state = t.snapshotLocked()
	}
	t.mu.Unlock()

	if becameStale {
		t.publish(state)
	}
	return st
}

// Tick advances the reference time used by windowed views.
func (t *Tracker) Tick(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.After(t.now) {
		t.now = now
	}
}

// Now returns the current reference time.
func (t *Tracker) Now() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.now
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

// Links returns a copy of the current links.
func (t *Tracker) Links() []model.Link {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]model.Link{}, t.links...)
}

// History returns a copy of the retained samples.
func (t *Tracker) History() []model.Sample {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.history.Samples()
}

// SeedState reports whether the demo backfill has run.
func (t *Tracker) SeedState() history.SeedState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.seeder.State()
}

// Status returns the poll loop status.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Session identifies this tracker instance.
func (t *Tracker) Session() string { return t.session }

func (t *Tracker) snapshotLocked() State {
	return State{
		Session: t.session,
		Links:   append([]model.Link{}, t.links...),
		History: t.history.Samples(),
		Now:     t.now,
		Seeded:  t.seeder.State() == history.Seeded,
		Status:  t.status,
	}
}

// Close stops accepting updates and closes every subscriber channel.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	t.subsClosed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
