//go:build !integration

package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPool_RunsTasks(t *testing.T) {
	logger := zerolog.Nop()
	p := NewPool(3, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var done atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		if err := p.Submit(func(ctx context.Context) error {
			defer wg.Done()
			done.Add(1)
			if done.Load()%2 == 0 {
				return errors.New("odd failure")
			}
			return nil
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()
	p.Stop()
	p.Stop()
	if done.Load() != 10 {
		t.Fatalf("ran %d tasks, want 10", done.Load())
	}
}

func TestPool_SurvivesPanic(t *testing.T) {
	logger := zerolog.Nop()
	p := NewPool(1, &logger)
	p.Start(context.Background())
	defer p.Stop()

	_ = p.Submit(func(ctx context.Context) error { panic("boom") })
	ran := make(chan struct{})
	_ = p.Submit(func(ctx context.Context) error { close(ran); return nil })
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
}

func TestPool_RejectsWhenFull(t *testing.T) {
	logger := zerolog.Nop()
	p := NewPool(1, &logger) // not started: nothing drains the queue
	for i := 0; i < 4; i++ {
		if err := p.Submit(func(ctx context.Context) error { return nil }); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	if err := p.Submit(func(ctx context.Context) error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	if err := p.Submit(nil); err == nil {
		t.Fatal("nil task accepted")
	}
}
