// Package memory is a process-local implementation of every repository port.
// It backs dev mode (database.url: memory://) and the usecase tests.
//
// Transactions are serializable: WithTx holds the store exclusively until fn
// returns and restores a snapshot when fn fails. Calls made with NoTX behave
// as single-statement transactions.
package memory

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v4"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
)

type tierKey struct {
	kind model.ProductKind
	code string
}

type state struct {
	requests    map[string]model.PaymentRequest
	tiers       map[tierKey]model.PricingTier
	subjects    map[string]bool
	memberships map[string]model.Membership
	boosts      []model.BoostWindow
	invites     []model.InvitationCode
	recon       []model.ReconciliationItem
}

func newState() *state {
	return &state{
		requests:    map[string]model.PaymentRequest{},
		tiers:       map[tierKey]model.PricingTier{},
		subjects:    map[string]bool{},
		memberships: map[string]model.Membership{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.tiers {
		c.tiers[k] = v
	}
	for k, v := range s.subjects {
		c.subjects[k] = v
	}
	for k, v := range s.memberships {
		c.memberships[k] = v
	}
	c.boosts = append(c.boosts, s.boosts...)
	c.invites = append(c.invites, s.invites...)
	c.recon = append(c.recon, s.recon...)
	return c
}

type Store struct {
	txMu sync.Mutex // held for the whole of a transaction
	mu   sync.Mutex // guards data
	data *state
}

func NewStore() *Store {
	return &Store{data: newState()}
}

// txHandle is the value handed to repositories inside WithTx.
type txHandle struct{ s *Store }

// enter locks the store for one repository call. Outside a transaction it also
// waits for any running transaction to finish.
func (s *Store) enter(tx repository.Tx) (func(), error) {
	switch h := tx.(type) {
	case nil:
		s.txMu.Lock()
		s.mu.Lock()
		return func() { s.mu.Unlock(); s.txMu.Unlock() }, nil
	case *txHandle:
		if h.s != s {
			return nil, domain.ErrInvalidExecContext
		}
		s.mu.Lock()
		return s.mu.Unlock, nil
	default:
		return nil, domain.ErrInvalidExecContext
	}
}

// Compile-time check
var _ repository.TransactionManager = (*Store)(nil)

func (s *Store) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	err := fn(ctx, &txHandle{s: s})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// AddSubject registers a subject id so activations can target it.
func (s *Store) AddSubject(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.subjects[id] = true
}

func (s *Store) RemoveSubject(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.subjects, id)
}

func (s *Store) Payments() *PaymentRequestRepo       { return &PaymentRequestRepo{s: s} }
func (s *Store) Pricing() *PricingRepo               { return &PricingRepo{s: s} }
func (s *Store) Subjects() *SubjectRepo              { return &SubjectRepo{s: s} }
func (s *Store) Memberships() *MembershipRepo        { return &MembershipRepo{s: s} }
func (s *Store) Boosts() *BoostRepo                  { return &BoostRepo{s: s} }
func (s *Store) Invitations() *InvitationCodeRepo    { return &InvitationCodeRepo{s: s} }
func (s *Store) Reconciliation() *ReconciliationRepo { return &ReconciliationRepo{s: s} }
