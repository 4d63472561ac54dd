// Package poller keeps a local view of the backend screener job status.
//
// A Poller is mounted for the lifetime of one status view. It fetches the
// status immediately, then on a fixed interval until a terminal state
// (idle, completed, error) is observed or its context is cancelled. Every
// fetch replaces the whole JobStatus; a failed fetch only raises an error
// flag and keeps the previous status visible.
package poller

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"screener-web/internal/models"
	"screener-web/pkg/errors"

	fylogger "github.com/FyersDev/trading-logger-go"
	"go.uber.org/atomic"
)

// DefaultInterval is the polling cadence used when none is configured.
const DefaultInterval = 2 * time.Second

// ErrNotRunning is returned by Cancel when the last known status has no running job.
var ErrNotRunning = stderrors.New("no running screener job")

// Source is the backend surface a Poller needs.
type Source interface {
	Status(ctx context.Context) (*models.JobStatus, error)
	Stop(ctx context.Context) error
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the delay between periodic fetches.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLastKnown seeds the view with a status fetched earlier, so a failed
// first fetch still has something to show.
func WithLastKnown(status *models.JobStatus) Option {
	return func(p *Poller) {
		p.view.Status = status
	}
}

// WithOnChange registers a callback receiving every new View. Calls are
// serialized and the last call always carries the latest state.
func WithOnChange(fn func(View)) Option {
	return func(p *Poller) {
		p.onChange = fn
	}
}

type Poller struct {
	src      Source
	interval time.Duration
	onChange func(View)

	mu      sync.Mutex
	view    View
	issued  uint64
	applied uint64

	inFlight *atomic.Int32
	running  *atomic.Bool
	wake     chan struct{}
	notifyMu sync.Mutex
}

// New creates an unmounted poller.
func New(src Source, opts ...Option) *Poller {
	p := &Poller{
		src:      src,
		interval: DefaultInterval,
		inFlight: atomic.NewInt32(0),
		running:  atomic.NewBool(false),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot returns the current view.
func (p *Poller) Snapshot() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// Run mounts the poller and blocks until a terminal state is observed or
// ctx is done. A Poller runs at most once at a time; a second concurrent
// Run returns immediately.
func (p *Poller) Run(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	defer p.running.Store(false)

	p.setPolling(true)
	defer p.setPolling(false)

	p.fetch(ctx)
	if p.terminal() || ctx.Err() != nil {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			if p.terminal() {
				return
			}
		case <-ticker.C:
			if p.inFlight.Load() > 0 {
				continue
			}
			p.fetch(ctx)
			if p.terminal() {
				return
			}
		}
	}
}

// Refresh performs one fetch outside the periodic schedule.
func (p *Poller) Refresh(ctx context.Context) View {
	p.fetch(ctx)
	return p.Snapshot()
}

// Cancel sends one stop request. On success it immediately re-fetches the
// status once; on failure it records StopError and leaves the status alone.
func (p *Poller) Cancel(ctx context.Context) error {
	if !p.Snapshot().CanStop() {
		return ErrNotRunning
	}

	if err := p.src.Stop(ctx); err != nil {
		fylogger.ErrorLog(ctx, "stop screener request failed", err, nil)
		p.mu.Lock()
		p.view.StopError = errors.As(err).Message
		p.mu.Unlock()
		p.publish()
		return err
	}

	p.mu.Lock()
	p.view.StopError = ""
	p.mu.Unlock()

	fylogger.InfoLog(ctx, "stop screener requested", nil)
	p.fetch(ctx)
	return nil
}

func (p *Poller) fetch(ctx context.Context) {
	p.mu.Lock()
	p.issued++
	seq := p.issued
	p.mu.Unlock()

	p.inFlight.Inc()
	status, err := p.src.Status(ctx)
	p.inFlight.Dec()

	if ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	if seq <= p.applied {
		// a newer response already landed
		p.mu.Unlock()
		return
	}
	p.applied = seq
	if err != nil {
		p.view.FetchError = errors.As(err).Message
	} else {
		p.view.Status = status
		p.view.FetchError = ""
	}
	terminal := p.view.Terminal()
	p.mu.Unlock()

	if err != nil {
		fylogger.ErrorLog(ctx, "screener status fetch failed", err, nil)
	} else if terminal {
		fylogger.InfoLog(ctx, "screener status terminal, polling stops", map[string]interface{}{
			"state": string(status.State),
		})
	}

	p.publish()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Poller) terminal() bool {
	return p.Snapshot().Terminal()
}

func (p *Poller) setPolling(on bool) {
	p.mu.Lock()
	p.view.Polling = on
	p.mu.Unlock()
	p.publish()
}

func (p *Poller) publish() {
	if p.onChange == nil {
		return
	}
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	p.onChange(p.Snapshot())
}
