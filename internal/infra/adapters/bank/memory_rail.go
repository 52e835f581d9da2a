package bank

import (
	"context"
	"sync"
	"time"

	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/adapter"
)

var _ adapter.BankingRail = (*MemoryRail)(nil)

// MemoryRail is an in-process statement for dev mode and demos.
type MemoryRail struct {
	mu        sync.RWMutex
	transfers []model.IncomingTransfer
}

func NewMemoryRail() *MemoryRail { return &MemoryRail{} }

func (r *MemoryRail) Name() string { return "memory" }

// Credit records an incoming transfer as if the bank had booked it.
func (r *MemoryRail) Credit(t model.IncomingTransfer) {
	if t.ReceivedAt.IsZero() {
		t.ReceivedAt = time.Now()
	}
	r.mu.Lock()
	r.transfers = append(r.transfers, t)
	r.mu.Unlock()
}

func (r *MemoryRail) FindIncomingTransfers(ctx context.Context, acc model.BankAccount, since time.Time) ([]model.IncomingTransfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.IncomingTransfer
	for _, t := range r.transfers {
		if t.AccountNumber != "" && t.AccountNumber != acc.AccountNumber {
			continue
		}
		if t.ReceivedAt.Before(since) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
