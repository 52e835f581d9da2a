//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
)

func seedSubject(t *testing.T, id string) {
	t.Helper()
	if err := NewSubjectRepo(testPool).Upsert(context.Background(), repository.NoTX, id, "Test "+id); err != nil {
		t.Fatalf("seed subject: %v", err)
	}
}

func newPending(id, subject, code string, now time.Time) *model.PaymentRequest {
	return &model.PaymentRequest{
		ID: id, Kind: model.KindBoost, TargetEntitlementID: "STANDARD", SubjectID: subject,
		Amount: 99_000, Code: code, QRPayload: "000201...",
		BankDeeplinks: []model.BankDeeplink{{BankID: "vcb", DeeplinkURL: "https://dl.vietqr.io/pay?app=vcb"}},
		AccountInfo:   model.BankAccount{BankCode: "VCB", BankBIN: "970436", AccountNumber: "0011001234567", AccountName: "CB"},
		CreatedAt:     now, ExpiresAt: now.Add(15 * time.Minute), Status: model.PaymentStatusPending, UpdatedAt: now,
	}
}

func TestPaymentRequestRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	cleanup(t)
	ctx := context.Background()
	repo := NewPaymentRequestRepo(testPool)
	seedSubject(t, "s1")
	seedSubject(t, "s2")
	now := time.Now().UTC().Truncate(time.Microsecond)

	p := newPending("01J0000000000000000000000A", "s1", "CBABCD2345", now)

	t.Run("should save and read back", func(t *testing.T) {
		if err := repo.Save(ctx, repository.NoTX, p); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := repo.FindByID(ctx, repository.NoTX, p.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if got.Amount != 99_000 || got.Code != p.Code || len(got.BankDeeplinks) != 1 || got.AccountInfo.BankBIN != "970436" {
			t.Errorf("round trip mismatch: %+v", got)
		}
		if _, err := repo.FindByID(ctx, repository.NoTX, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("missing id: err = %v", err)
		}
	})

	t.Run("should enforce one pending per tuple and per code", func(t *testing.T) {
		dupTuple := newPending("01J0000000000000000000000B", "s1", "CBWXYZ6789", now)
		if err := repo.Save(ctx, repository.NoTX, dupTuple); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("duplicate tuple: err = %v", err)
		}
		dupCode := newPending("01J0000000000000000000000C", "s2", "CBABCD2345", now)
		if err := repo.Save(ctx, repository.NoTX, dupCode); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("duplicate code: err = %v", err)
		}
		inUse, err := repo.CodeInUse(ctx, repository.NoTX, "CBABCD2345")
		if err != nil || !inUse {
			t.Errorf("CodeInUse = %v, %v", inUse, err)
		}
	})

	t.Run("should settle exactly once under concurrent CAS", func(t *testing.T) {
		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.MarkSettledIfPending(ctx, repository.NoTX, p.ID, now, "FT-1")
				if err != nil {
					t.Errorf("CAS: %v", err)
				}
				if ok {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Fatalf("CAS won %d times, want 1", wins)
		}
		ok, err := repo.MarkExpiredIfPending(ctx, repository.NoTX, p.ID)
		if err != nil || ok {
			t.Fatalf("expire after settle: ok=%v err=%v", ok, err)
		}
	})

	t.Run("should reject leaving a terminal state at the database level", func(t *testing.T) {
		_, err := testPool.Exec(ctx, `UPDATE payment_requests SET status='pending' WHERE id=$1`, p.ID)
		if err == nil {
			t.Fatal("expected the guard trigger to reject the update")
		}
	})

	t.Run("should free the code once terminal and prefer pending on lookup", func(t *testing.T) {
		again := newPending("01J0000000000000000000000D", "s2", "CBABCD2345", now.Add(time.Minute))
		if err := repo.Save(ctx, repository.NoTX, again); err != nil {
			t.Fatalf("reuse code: %v", err)
		}
		got, err := repo.FindLatestByCode(ctx, repository.NoTX, "CBABCD2345")
		if err != nil || got.ID != again.ID {
			t.Fatalf("FindLatestByCode = %v, %v", got, err)
		}
	})

	t.Run("should sweep expired rows in batches", func(t *testing.T) {
		n, err := repo.ExpirePendingBefore(ctx, repository.NoTX, now.Add(time.Hour), 10)
		if err != nil || n != 1 {
			t.Fatalf("ExpirePendingBefore = %d, %v; want 1", n, err)
		}
		pending, err := repo.ListPending(ctx, repository.NoTX, 10)
		if err != nil || len(pending) != 0 {
			t.Fatalf("ListPending = %d, %v", len(pending), err)
		}
	})
}

func TestTxManager_RollbackAndAdvisoryLock_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	cleanup(t)
	ctx := context.Background()
	tm := NewTxManager(testPool)
	repo := NewPaymentRequestRepo(testPool)
	boosts := NewBoostRepo(testPool)
	seedSubject(t, "s1")
	now := time.Now().UTC().Truncate(time.Microsecond)
	p := newPending("01J0000000000000000000000E", "s1", "CBQRST2345", now)
	if err := repo.Save(ctx, repository.NoTX, p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	boom := errors.New("effect failed")
	err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := repo.LockTuple(ctx, tx, "s1", model.KindBoost, "STANDARD"); err != nil {
			return err
		}
		if _, err := repo.FindByID(ctx, tx, p.ID); err != nil {
			return err
		}
		if ok, err := repo.MarkSettledIfPending(ctx, tx, p.ID, now, "FT-9"); err != nil || !ok {
			t.Fatalf("CAS in tx: ok=%v err=%v", ok, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx err = %v", err)
	}
	got, _ := repo.FindByID(ctx, repository.NoTX, p.ID)
	if got.Status != model.PaymentStatusPending {
		t.Fatalf("status after rollback = %s", got.Status)
	}

	if err := repo.LockTuple(ctx, repository.NoTX, "s1", model.KindBoost, "STANDARD"); !errors.Is(err, domain.ErrInvalidExecContext) {
		t.Fatalf("LockTuple outside tx: err = %v", err)
	}

	err = tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := repo.MarkSettledIfPending(ctx, tx, p.ID, now, "FT-9"); err != nil {
			return err
		}
		return boosts.Create(ctx, tx, &model.BoostWindow{
			ID: "b1", SubjectID: "s1", Tier: "STANDARD", Multiplier: 1.5,
			StartsAt: now, EndsAt: now.Add(24 * time.Hour), PaymentRequestID: p.ID, CreatedAt: now,
		})
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	active, err := boosts.ListActive(ctx, repository.NoTX, "s1", now.Add(time.Hour))
	if err != nil || len(active) != 1 {
		t.Fatalf("ListActive = %d, %v", len(active), err)
	}
}
