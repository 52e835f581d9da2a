package model

import "time"

// Membership is the subject's membership window. A subject has at most one row.
type Membership struct {
	SubjectID   string    `json:"subject_id"`
	Tier        string    `json:"tier"`
	ActiveUntil time.Time `json:"active_until"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Extend pushes the window by d starting from max(now, ActiveUntil).
func (m *Membership) Extend(tier string, now time.Time, d time.Duration) {
	start := now
	if m.ActiveUntil.After(now) {
		start = m.ActiveUntil
	}
	m.Tier = tier
	m.ActiveUntil = start.Add(d)
	m.UpdatedAt = now
}

func (m *Membership) ActiveAt(t time.Time) bool {
	return m != nil && t.Before(m.ActiveUntil)
}

// BoostWindow is a time-boxed visibility multiplier on a profile.
type BoostWindow struct {
	ID               string    `json:"id"`
	SubjectID        string    `json:"subject_id"`
	Tier             string    `json:"tier"`
	Multiplier       float64   `json:"multiplier"`
	StartsAt         time.Time `json:"starts_at"`
	EndsAt           time.Time `json:"ends_at"`
	PaymentRequestID string    `json:"payment_request_id"`
	CreatedAt        time.Time `json:"created_at"`
}

func (b *BoostWindow) ActiveAt(t time.Time) bool {
	return !t.Before(b.StartsAt) && t.Before(b.EndsAt)
}

// InvitationCode is a single-use code credited to a subject.
type InvitationCode struct {
	ID               string     `json:"id"`
	Code             string     `json:"code"`
	SubjectID        string     `json:"subject_id"`
	PaymentRequestID string     `json:"payment_request_id"`
	CreatedAt        time.Time  `json:"created_at"`
	UsedAt           *time.Time `json:"used_at,omitempty"`
	UsedBy           *string    `json:"used_by,omitempty"`
}

// Entitlements is the read model returned for a subject.
type Entitlements struct {
	SubjectID       string           `json:"subject_id"`
	Membership      *Membership      `json:"membership,omitempty"`
	ActiveBoosts    []BoostWindow    `json:"active_boosts"`
	UnusedInviteCnt int              `json:"unused_invitation_codes"`
	InvitationCodes []InvitationCode `json:"invitation_codes,omitempty"`
}
