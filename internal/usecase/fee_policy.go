package usecase

import (
	"fmt"

	"companion-billing/internal/config"
	"companion-billing/internal/domain"
)

const bpsDenominator = 10_000

// FeePolicy computes marketplace fees from the business-constant table. All
// amounts are VND and all rates are basis points, so every result is exact
// integer arithmetic rounded half-up.
type FeePolicy struct {
	t config.FeeConfig
}

func NewFeePolicy(t config.FeeConfig) *FeePolicy {
	return &FeePolicy{t: t}
}

// roundBps returns round-half-up(amount * bps / 10000) for non-negative inputs.
func roundBps(amount, bps int64) int64 {
	return (amount*bps + bpsDenominator/2) / bpsDenominator
}

// HirerServiceFee is what the hirer pays on top of a booking.
func (f *FeePolicy) HirerServiceFee(bookingAmount int64) (int64, error) {
	if bookingAmount < 0 {
		return 0, fmt.Errorf("hirer service fee: %w", domain.ErrInvalidAmount)
	}
	return roundBps(bookingAmount, f.t.HirerServiceFeeBps), nil
}

// PlatformFee is the platform's cut of companion earnings.
func (f *FeePolicy) PlatformFee(companionEarnings int64) (int64, error) {
	if companionEarnings < 0 {
		return 0, fmt.Errorf("platform fee: %w", domain.ErrInvalidAmount)
	}
	return roundBps(companionEarnings, f.t.PlatformFeeBps), nil
}

// WithdrawalFee is clamp(rate fee, min fee, amount). Amounts outside
// [min amount, max amount] are rejected before anything else happens.
func (f *FeePolicy) WithdrawalFee(amount int64) (int64, error) {
	if amount < f.t.WithdrawalMinAmount || amount > f.t.WithdrawalMaxAmount {
		return 0, fmt.Errorf("withdrawal of %d outside [%d, %d]: %w",
			amount, f.t.WithdrawalMinAmount, f.t.WithdrawalMaxAmount, domain.ErrInvalidAmount)
	}
	fee := roundBps(amount, f.t.WithdrawalFeeBps)
	if fee < f.t.WithdrawalMinFee {
		fee = f.t.WithdrawalMinFee
	}
	if fee > amount {
		fee = amount
	}
	return fee, nil
}

// CancellationFee is free at or beyond the free-cancellation horizon, a flat
// percentage of the booking inside it.
func (f *FeePolicy) CancellationFee(bookingAmount int64, hoursBeforeStart float64) (int64, error) {
	if bookingAmount < 0 {
		return 0, fmt.Errorf("cancellation fee: %w", domain.ErrInvalidAmount)
	}
	if hoursBeforeStart >= float64(f.t.FreeCancellationHours) {
		return 0, nil
	}
	return roundBps(bookingAmount, f.t.CancellationFeeBps), nil
}

// BookingQuote bundles the fees shown on a booking summary.
type BookingQuote struct {
	BookingAmount    int64 `json:"booking_amount"`
	HirerServiceFee  int64 `json:"hirer_service_fee"`
	HirerTotal       int64 `json:"hirer_total"`
	PlatformFee      int64 `json:"platform_fee"`
	CompanionPayout  int64 `json:"companion_payout"`
	CancellationFee  int64 `json:"cancellation_fee"`
	FreeCancellation bool  `json:"free_cancellation"`
}

func (f *FeePolicy) QuoteBooking(bookingAmount int64, hoursBeforeStart float64) (*BookingQuote, error) {
	svc, err := f.HirerServiceFee(bookingAmount)
	if err != nil {
		return nil, err
	}
	plat, err := f.PlatformFee(bookingAmount)
	if err != nil {
		return nil, err
	}
	cancel, err := f.CancellationFee(bookingAmount, hoursBeforeStart)
	if err != nil {
		return nil, err
	}
	return &BookingQuote{
		BookingAmount:    bookingAmount,
		HirerServiceFee:  svc,
		HirerTotal:       bookingAmount + svc,
		PlatformFee:      plat,
		CompanionPayout:  bookingAmount - plat,
		CancellationFee:  cancel,
		FreeCancellation: cancel == 0,
	}, nil
}
