// Package poller is the client side of the payment flow: it counts down to a
// request's expiry, polls its status on a fixed interval and reports the
// terminal outcome exactly once.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"companion-billing/internal/domain/model"
)

type StatusFetcher interface {
	FetchStatus(ctx context.Context, id string) (*model.StatusView, error)
}

// Callbacks are invoked from the poller goroutine. At most one of OnSettled
// and OnExpired fires, at most once.
type Callbacks struct {
	OnSettled func(v model.StatusView)
	OnExpired func(v model.StatusView)
	// OnTick receives the remaining window every CountdownStep.
	OnTick  func(remaining time.Duration)
	OnError func(err error)
}

type Config struct {
	Interval      time.Duration
	CountdownStep time.Duration
}

type pollResult struct {
	seq  int
	view *model.StatusView
	err  error
}

type Poller struct {
	fetch     StatusFetcher
	id        string
	expiresAt time.Time
	cfg       Config
	cb        Callbacks
	log       *zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

func New(fetch StatusFetcher, id string, expiresAt time.Time, cfg Config, cb Callbacks, logger *zerolog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.CountdownStep <= 0 {
		cfg.CountdownStep = time.Second
	}
	l := logger.With().Str("component", "poller").Str("payment_request_id", id).Logger()
	return &Poller{
		fetch: fetch, id: id, expiresAt: expiresAt, cfg: cfg, cb: cb,
		log: &l, now: time.Now, done: make(chan struct{}),
	}
}

// Start launches the poller goroutine. Calling it twice is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)
}

// Cancel stops polling and the countdown. No callback fires afterwards.
func (p *Poller) Cancel() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed when the poller goroutine exits.
func (p *Poller) Done() <-chan struct{} { return p.done }

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	pollT := time.NewTicker(p.cfg.Interval)
	defer pollT.Stop()
	tickT := time.NewTicker(p.cfg.CountdownStep)
	defer tickT.Stop()
	deadline := time.NewTimer(time.Until(p.expiresAt))
	defer deadline.Stop()

	results := make(chan pollResult, 1)
	var (
		seq        int
		wg         sync.WaitGroup
		cancelPoll context.CancelFunc = func() {}
	)
	defer wg.Wait()
	defer func() { cancelPoll() }()

	// startPoll supersedes any poll still in flight.
	startPoll := func() {
		cancelPoll()
		seq++
		var pctx context.Context
		pctx, cancelPoll = context.WithTimeout(ctx, p.cfg.Interval)
		wg.Add(1)
		go func(n int, pctx context.Context) {
			defer wg.Done()
			v, err := p.fetch.FetchStatus(pctx, p.id)
			select {
			case results <- pollResult{seq: n, view: v, err: err}:
			case <-pctx.Done():
			}
		}(seq, pctx)
	}

	p.tick()
	startPoll()
	for {
		select {
		case <-ctx.Done():
			p.log.Debug().Msg("poller cancelled")
			return
		case <-tickT.C:
			p.tick()
		case <-pollT.C:
			startPoll()
		case r := <-results:
			// a superseded answer is still true if it arrived; only its
			// errors are stale
			if r.seq != seq && r.err != nil {
				continue
			}
			if p.handle(ctx, r) {
				return
			}
		case <-deadline.C:
			p.finalCheck(ctx, cancelPoll)
			return
		}
	}
}

func (p *Poller) tick() {
	if p.cb.OnTick == nil {
		return
	}
	rem := p.expiresAt.Sub(p.now())
	if rem < 0 {
		rem = 0
	}
	p.cb.OnTick(rem.Truncate(time.Second))
}

// handle reports whether the poller reached a terminal state.
func (p *Poller) handle(ctx context.Context, r pollResult) bool {
	if r.err != nil {
		if !errors.Is(r.err, context.Canceled) && !errors.Is(r.err, context.DeadlineExceeded) && p.cb.OnError != nil && ctx.Err() == nil {
			p.cb.OnError(r.err)
		}
		return false
	}
	return p.terminal(ctx, *r.view)
}

func (p *Poller) terminal(ctx context.Context, v model.StatusView) bool {
	if ctx.Err() != nil {
		return true
	}
	switch v.Status {
	case model.PaymentStatusSettled:
		if p.cb.OnSettled != nil {
			p.cb.OnSettled(v)
		}
		return true
	case model.PaymentStatusExpired, model.PaymentStatusFailed:
		if p.cb.OnExpired != nil {
			p.cb.OnExpired(v)
		}
		return true
	}
	return false
}

// finalCheck runs when the countdown hits zero. The server gets one last
// chance to report a transfer made inside the window; anything but settled is
// treated as expired.
func (p *Poller) finalCheck(ctx context.Context, cancelPoll context.CancelFunc) {
	cancelPoll()
	if p.cb.OnTick != nil {
		p.cb.OnTick(0)
	}
	fctx, cancel := context.WithTimeout(ctx, p.cfg.Interval)
	defer cancel()
	v, err := p.fetch.FetchStatus(fctx, p.id)
	if ctx.Err() != nil {
		return
	}
	if err == nil && v.Status == model.PaymentStatusSettled {
		p.terminal(ctx, *v)
		return
	}
	if err != nil {
		p.log.Debug().Err(err).Msg("final status check failed")
	}
	p.terminal(ctx, model.StatusView{ID: p.id, Status: model.PaymentStatusExpired, ExpiresAt: p.expiresAt})
}
