//go:build !integration

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
)

func pending(id, code string, now time.Time) *model.PaymentRequest {
	return &model.PaymentRequest{
		ID: id, Kind: model.KindBoost, TargetEntitlementID: "STANDARD", SubjectID: "s1",
		Amount: 99_000, Code: code, CreatedAt: now, ExpiresAt: now.Add(15 * time.Minute),
		Status: model.PaymentStatusPending,
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Payments()
	now := time.Now()
	if err := repo.Save(ctx, repository.NoTX, pending("p1", "CBAAAA2222", now)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	boom := errors.New("boom")
	err := s.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := repo.MarkSettledIfPending(ctx, tx, "p1", now, "ref-1")
		if err != nil || !ok {
			t.Fatalf("CAS inside tx: ok=%v err=%v", ok, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want boom", err)
	}
	p, _ := repo.FindByID(ctx, repository.NoTX, "p1")
	if p.Status != model.PaymentStatusPending || p.SettledAt != nil {
		t.Fatalf("expected rollback to pending, got %s", p.Status)
	}
}

func TestCAS_OnlyFromPending(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Payments()
	now := time.Now()
	_ = repo.Save(ctx, repository.NoTX, pending("p1", "CBAAAA2222", now))

	ok, _ := repo.MarkExpiredIfPending(ctx, repository.NoTX, "p1")
	if !ok {
		t.Fatal("first CAS should win")
	}
	ok, _ = repo.MarkSettledIfPending(ctx, repository.NoTX, "p1", now, "ref")
	if ok {
		t.Fatal("settle after expiry must not fire")
	}
	ok, _ = repo.MarkFailedIfPending(ctx, repository.NoTX, "p1", "fraud")
	if ok {
		t.Fatal("fail after expiry must not fire")
	}
}

func TestSave_PendingUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Payments()
	now := time.Now()
	_ = repo.Save(ctx, repository.NoTX, pending("p1", "CBAAAA2222", now))

	dupCode := pending("p2", "CBAAAA2222", now)
	dupCode.SubjectID = "s2"
	if err := repo.Save(ctx, repository.NoTX, dupCode); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate pending code: err = %v", err)
	}
	if err := repo.Save(ctx, repository.NoTX, pending("p3", "CBBBBB3333", now)); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate pending tuple: err = %v", err)
	}

	_, _ = repo.MarkExpiredIfPending(ctx, repository.NoTX, "p1")
	if err := repo.Save(ctx, repository.NoTX, pending("p4", "CBAAAA2222", now)); err != nil {
		t.Fatalf("code should be reusable once the holder is terminal: %v", err)
	}
}

func TestExpirePendingBefore(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Payments()
	now := time.Now()
	old := pending("old", "CBAAAA2222", now.Add(-time.Hour))
	fresh := pending("fresh", "CBBBBB3333", now)
	fresh.SubjectID = "s2"
	_ = repo.Save(ctx, repository.NoTX, old)
	_ = repo.Save(ctx, repository.NoTX, fresh)

	n, err := repo.ExpirePendingBefore(ctx, repository.NoTX, now, 10)
	if err != nil || n != 1 {
		t.Fatalf("ExpirePendingBefore = %d, %v; want 1", n, err)
	}
	p, _ := repo.FindByID(ctx, repository.NoTX, "fresh")
	if p.Status != model.PaymentStatusPending {
		t.Fatalf("fresh request should stay pending, got %s", p.Status)
	}
}

func TestReconciliation_IdempotentRecord(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Reconciliation()
	item := &model.ReconciliationItem{ID: "i1", TransferRef: "ref", Reason: model.ReconcileAmountMismatch}

	created, _ := repo.Record(ctx, repository.NoTX, item)
	if !created {
		t.Fatal("first record should create")
	}
	again := *item
	again.ID = "i2"
	created, _ = repo.Record(ctx, repository.NoTX, &again)
	if created {
		t.Fatal("second record for the same ref and reason should be a no-op")
	}
	if err := repo.Resolve(ctx, repository.NoTX, "i1", "refunded", time.Now()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	open, _ := repo.ListOpen(ctx, repository.NoTX, 10)
	if len(open) != 0 {
		t.Fatalf("expected no open items, got %d", len(open))
	}
}
