//go:build !integration

package poller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-billing/internal/domain/model"
)

// scriptFetcher returns statuses in order, repeating the last one.
type scriptFetcher struct {
	mu       sync.Mutex
	statuses []model.PaymentStatus
	calls    int
	delay    time.Duration
	err      error
}

func (f *scriptFetcher) FetchStatus(ctx context.Context, id string) (*model.StatusView, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	delay, err := f.delay, f.err
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	return &model.StatusView{ID: id, Status: f.statuses[i]}, nil
}

func (f *scriptFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorder struct {
	settled atomic.Int32
	expired atomic.Int32
	errs    atomic.Int32
	ticks   atomic.Int32
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnSettled: func(model.StatusView) { r.settled.Add(1) },
		OnExpired: func(model.StatusView) { r.expired.Add(1) },
		OnTick:    func(time.Duration) { r.ticks.Add(1) },
		OnError:   func(error) { r.errs.Add(1) },
	}
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func waitDone(t *testing.T, p *Poller) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPoller_SettledFiresOnce(t *testing.T) {
	f := &scriptFetcher{statuses: []model.PaymentStatus{model.PaymentStatusPending, model.PaymentStatusPending, model.PaymentStatusSettled}}
	rec := &recorder{}
	p := New(f, "p1", time.Now().Add(time.Minute), Config{Interval: 10 * time.Millisecond, CountdownStep: 5 * time.Millisecond}, rec.callbacks(), nopLogger())
	p.Start(context.Background())
	p.Start(context.Background())
	waitDone(t, p)

	assert.EqualValues(t, 1, rec.settled.Load())
	assert.EqualValues(t, 0, rec.expired.Load())
	assert.GreaterOrEqual(t, f.Calls(), 3)
	assert.Positive(t, rec.ticks.Load())
}

func TestPoller_ObservedExpiry(t *testing.T) {
	f := &scriptFetcher{statuses: []model.PaymentStatus{model.PaymentStatusPending, model.PaymentStatusExpired}}
	rec := &recorder{}
	p := New(f, "p1", time.Now().Add(time.Minute), Config{Interval: 10 * time.Millisecond}, rec.callbacks(), nopLogger())
	p.Start(context.Background())
	waitDone(t, p)

	assert.EqualValues(t, 0, rec.settled.Load())
	assert.EqualValues(t, 1, rec.expired.Load())
}

func TestPoller_CountdownExpiry(t *testing.T) {
	f := &scriptFetcher{statuses: []model.PaymentStatus{model.PaymentStatusPending}}
	rec := &recorder{}
	p := New(f, "p1", time.Now().Add(60*time.Millisecond), Config{Interval: 20 * time.Millisecond}, rec.callbacks(), nopLogger())
	p.Start(context.Background())
	waitDone(t, p)

	assert.EqualValues(t, 1, rec.expired.Load())
	assert.EqualValues(t, 0, rec.settled.Load())
}

func TestPoller_FinalCheckCatchesLateSettlement(t *testing.T) {
	// pending while polling, settled on the final check at the deadline
	f := &scriptFetcher{statuses: []model.PaymentStatus{model.PaymentStatusPending, model.PaymentStatusSettled}}
	rec := &recorder{}
	p := New(f, "p1", time.Now().Add(30*time.Millisecond), Config{Interval: time.Hour}, rec.callbacks(), nopLogger())
	p.Start(context.Background())
	waitDone(t, p)

	assert.EqualValues(t, 1, rec.settled.Load())
	assert.EqualValues(t, 0, rec.expired.Load())
}

func TestPoller_SlowPollIsSupersededNotOverlapped(t *testing.T) {
	var inflight, maxInflight atomic.Int32
	f := fetcherFunc(func(ctx context.Context, id string) (*model.StatusView, error) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			m := maxInflight.Load()
			if n <= m || maxInflight.CompareAndSwap(m, n) {
				break
			}
		}
		<-ctx.Done() // never answers within the interval
		return nil, ctx.Err()
	})
	rec := &recorder{}
	p := New(f, "p1", time.Now().Add(time.Minute), Config{Interval: 10 * time.Millisecond}, rec.callbacks(), nopLogger())
	p.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	p.Cancel()
	waitDone(t, p)

	// a superseded poll may still be unwinding while its successor starts
	assert.LessOrEqual(t, maxInflight.Load(), int32(2))
	assert.EqualValues(t, 0, rec.errs.Load(), "timeouts are not reported as errors")
	assert.EqualValues(t, 0, rec.settled.Load()+rec.expired.Load())
}

func TestPoller_CancelStopsEverything(t *testing.T) {
	f := &scriptFetcher{statuses: []model.PaymentStatus{model.PaymentStatusPending}}
	rec := &recorder{}
	p := New(f, "p1", time.Now().Add(50*time.Millisecond), Config{Interval: 10 * time.Millisecond}, rec.callbacks(), nopLogger())
	p.Start(context.Background())
	p.Cancel()
	waitDone(t, p)
	calls := f.Calls()
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, calls, f.Calls(), "no polls after cancel")
	assert.EqualValues(t, 0, rec.expired.Load(), "countdown stopped by cancel")
}

func TestPoller_ErrorsAreReportedAndPollingContinues(t *testing.T) {
	f := &scriptFetcher{statuses: []model.PaymentStatus{model.PaymentStatusPending}, err: errors.New("network down")}
	rec := &recorder{}
	p := New(f, "p1", time.Now().Add(time.Minute), Config{Interval: 5 * time.Millisecond}, rec.callbacks(), nopLogger())
	p.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	p.Cancel()
	waitDone(t, p)

	assert.Greater(t, rec.errs.Load(), int32(1))
	assert.Greater(t, f.Calls(), 2)
}

type fetcherFunc func(ctx context.Context, id string) (*model.StatusView, error)

func (f fetcherFunc) FetchStatus(ctx context.Context, id string) (*model.StatusView, error) {
	return f(ctx, id)
}

func TestClient(t *testing.T) {
	exp := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/payment-requests":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["tier"] == "ULTRA" {
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "pricing tier not found", "code": "tier_not_found"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "p1", "amount": 99000, "code": "CBABCD2345", "status": "pending", "expires_at": exp})
		case r.URL.Path == "/api/v1/payment-requests/p1/status":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "p1", "status": "settled", "expires_at": exp})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	ctx := context.Background()

	pr, err := c.CreatePaymentRequest(ctx, "subject-1", "boost", "STANDARD")
	require.NoError(t, err)
	assert.Equal(t, "CBABCD2345", pr.Code)
	assert.True(t, pr.ExpiresAt.Equal(exp))

	_, err = c.CreatePaymentRequest(ctx, "subject-1", "boost", "ULTRA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pricing tier not found")

	v, err := c.FetchStatus(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusSettled, v.Status)
}
