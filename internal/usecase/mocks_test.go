//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
	"companion-billing/internal/infra/db/memory"
	"companion-billing/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ---- clock ----

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// ---- adapters ----

type stubInstructions struct{}

func (stubInstructions) QRPayload(acc model.BankAccount, amount int64, description string) (string, error) {
	return "QR|" + acc.AccountNumber + "|" + description, nil
}

func (stubInstructions) Deeplinks(acc model.BankAccount, amount int64, description string) []model.BankDeeplink {
	return []model.BankDeeplink{{BankID: "vcb", DeeplinkURL: "https://dl.example/vcb?memo=" + description}}
}

type fakeRail struct {
	mu        sync.Mutex
	transfers []model.IncomingTransfer
	Err       error
	calls     int
}

func (r *fakeRail) Name() string { return "fake" }

func (r *fakeRail) Add(t model.IncomingTransfer) {
	r.mu.Lock()
	r.transfers = append(r.transfers, t)
	r.mu.Unlock()
}

func (r *fakeRail) FindIncomingTransfers(ctx context.Context, acc model.BankAccount, since time.Time) ([]model.IncomingTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.Err != nil {
		return nil, r.Err
	}
	var out []model.IncomingTransfer
	for _, t := range r.transfers {
		if !t.ReceivedAt.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeReserver struct {
	mu       sync.Mutex
	reserved map[string]bool
}

func (r *fakeReserver) Reserve(ctx context.Context, code string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reserved == nil {
		r.reserved = map[string]bool{}
	}
	if r.reserved[code] {
		return false, nil
	}
	r.reserved[code] = true
	return true, nil
}

type mockNotifier struct {
	mu             sync.Mutex
	reconciliation []*model.ReconciliationItem
	settled        []string
}

func (n *mockNotifier) NotifyReconciliation(ctx context.Context, item *model.ReconciliationItem) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reconciliation = append(n.reconciliation, item)
	return nil
}

func (n *mockNotifier) NotifySettled(ctx context.Context, p *model.PaymentRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.settled = append(n.settled, p.ID)
	return nil
}

func (n *mockNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reconciliation), len(n.settled)
}

// hookBoosts lets a test fail the boost effect.
type hookBoosts struct {
	repository.BoostRepository
	CreateFunc func(ctx context.Context, tx repository.Tx, b *model.BoostWindow) error
}

func (h *hookBoosts) Create(ctx context.Context, tx repository.Tx, b *model.BoostWindow) error {
	if h.CreateFunc != nil {
		if err := h.CreateFunc(ctx, tx, b); err != nil {
			return err
		}
	}
	return h.BoostRepository.Create(ctx, tx, b)
}

// ---- wiring ----

var testAccount = model.BankAccount{
	BankCode: "VCB", BankBIN: "970436", AccountNumber: "0011001234567", AccountName: "COMPANION BILLING",
}

const testWindow = 15 * time.Minute

type testEnv struct {
	store     *memory.Store
	clock     *fakeClock
	rail      *fakeRail
	notifier  *mockNotifier
	boosts    *hookBoosts
	catalog   usecase.CatalogUseCase
	ledger    usecase.PaymentLedger
	activator usecase.EntitlementActivator
	detector  usecase.SettlementDetector
	recon     usecase.ReconciliationUseCase
	query     *usecase.EntitlementQuery
}

func seedTiers() []*model.PricingTier {
	return []*model.PricingTier{
		{Kind: model.KindBoost, Code: "STANDARD", Name: "Standard boost", Price: 99_000, DurationHours: 24, Multiplier: 1.5, SortOrder: 1},
		{Kind: model.KindBoost, Code: "PREMIUM", Name: "Premium boost", Price: 199_000, DurationHours: 72, Multiplier: 2, SortOrder: 2},
		{Kind: model.KindBoost, Code: "BASIC", Name: "Basic boost", Price: 49_000, DurationHours: 6, Multiplier: 1.2, SortOrder: 0},
		{Kind: model.KindMembership, Code: "GOLD", Name: "Gold", Price: 199_000, DurationDays: 30, SortOrder: 1},
		{Kind: model.KindInvitationPackage, Code: "Starter Pack", Name: "Starter Pack", Price: 50_000, PriceUSD: 199, CodeCount: 5, SortOrder: 1},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := newTestLogger()
	store := memory.NewStore()
	store.AddSubject("subject-1")
	store.AddSubject("subject-2")

	for _, tier := range seedTiers() {
		if err := store.Pricing().Upsert(ctx, repository.NoTX, tier); err != nil {
			t.Fatalf("seed tier: %v", err)
		}
	}

	e := &testEnv{
		store:    store,
		clock:    newFakeClock(),
		rail:     &fakeRail{},
		notifier: &mockNotifier{},
		boosts:   &hookBoosts{BoostRepository: store.Boosts()},
	}
	e.catalog = usecase.NewCatalogUseCase(store.Pricing(), log)
	if err := e.catalog.Refresh(ctx); err != nil {
		t.Fatalf("catalog refresh: %v", err)
	}

	codes := usecase.CodeGenerator{Prefix: "CB", Length: 8}
	ledger := usecase.NewPaymentLedger(store, store.Payments(), store.Subjects(), e.catalog, stubInstructions{}, &fakeReserver{},
		usecase.LedgerConfig{
			Account: testAccount, Window: testWindow, CodeCooldown: 24 * time.Hour,
			SweepGrace: 2 * time.Minute, SweepBatch: 2, Codes: codes,
		}, log)
	ledger.SetClock(e.clock.Now)
	e.ledger = ledger

	act := usecase.NewEntitlementActivator(store, store.Payments(), store.Subjects(), store.Memberships(), e.boosts,
		store.Invitations(), e.catalog, e.notifier, log)
	act.SetClock(e.clock.Now)
	e.activator = act

	e.recon = usecase.NewReconciliationUseCase(store.Reconciliation(), e.notifier, log)

	det := usecase.NewSettlementDetector(store.Payments(), e.rail, act, e.recon, nil,
		usecase.DetectorConfig{Lookback: 5 * time.Minute, LockTTL: 30 * time.Second, Codes: codes}, log)
	det.SetClock(e.clock.Now)
	ledger.SetDetector(det)
	e.detector = det

	q := usecase.NewEntitlementQuery(store.Subjects(), store.Memberships(), store.Boosts(), store.Invitations())
	q.SetClock(e.clock.Now)
	e.query = q
	return e
}

// pay drops a transfer for p onto the rail at the current fake time.
func (e *testEnv) pay(p *model.PaymentRequest, amount int64, ref string) model.IncomingTransfer {
	tr := model.IncomingTransfer{
		Reference:     ref,
		AccountNumber: testAccount.AccountNumber,
		Amount:        amount,
		Description:   "MBVCB.8812." + p.Code + ".NGUYEN VAN A chuyen tien",
		ReceivedAt:    e.clock.Now(),
	}
	e.rail.Add(tr)
	return tr
}

func mustStatus(t *testing.T, e *testEnv, id string) model.PaymentStatus {
	t.Helper()
	p, err := e.store.Payments().FindByID(context.Background(), repository.NoTX, id)
	if err != nil {
		t.Fatalf("FindByID(%s): %v", id, err)
	}
	return p.Status
}
