//go:build !integration

package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-billing/internal/config"
	"companion-billing/internal/domain"
	"companion-billing/internal/usecase"
)

func TestFeePolicy_WithdrawalFee(t *testing.T) {
	fp := usecase.NewFeePolicy(config.DefaultFees())

	cases := []struct {
		name    string
		amount  int64
		want    int64
		wantErr error
	}{
		{"below minimum amount", 50_000, 0, domain.ErrInvalidAmount},
		{"just below minimum", 99_999, 0, domain.ErrInvalidAmount},
		{"floor fee dominates at minimum", 100_000, 10_000, nil},
		{"floor fee still dominates", 999_999, 10_000, nil},
		{"rate equals floor", 1_000_000, 10_000, nil},
		{"rate dominates", 2_500_000, 25_000, nil},
		{"maximum amount", 50_000_000, 500_000, nil},
		{"above maximum amount", 50_000_001, 0, domain.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := fp.WithdrawalFee(tc.amount)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFeePolicy_WithdrawalFee_ClampedToAmount(t *testing.T) {
	tbl := config.DefaultFees()
	tbl.WithdrawalMinAmount = 1_000
	tbl.WithdrawalMinFee = 5_000
	fp := usecase.NewFeePolicy(tbl)

	got, err := fp.WithdrawalFee(2_000)
	require.NoError(t, err)
	assert.Equal(t, int64(2_000), got, "fee must never exceed the withdrawn amount")
}

func TestFeePolicy_CancellationFee(t *testing.T) {
	fp := usecase.NewFeePolicy(config.DefaultFees())

	cases := []struct {
		hours float64
		want  int64
	}{
		{30, 0},
		{24, 0},
		{23.99, 500_000},
		{10, 500_000},
		{0, 500_000},
	}
	for _, tc := range cases {
		got, err := fp.CancellationFee(1_000_000, tc.hours)
		require.NoError(t, err)
		assert.Equalf(t, tc.want, got, "hours before start = %v", tc.hours)
	}
}

func TestFeePolicy_RoundHalfUp(t *testing.T) {
	fp := usecase.NewFeePolicy(config.DefaultFees())

	// 5% of 10 = 0.5 -> 1
	got, err := fp.HirerServiceFee(10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	// 5% of 9 = 0.45 -> 0
	got, err = fp.HirerServiceFee(9)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	// 15% of 30 = 4.5 -> 5
	got, err = fp.PlatformFee(30)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)

	// 15% of 1_000_003 = 150_000.45 -> 150_000
	got, err = fp.PlatformFee(1_000_003)
	require.NoError(t, err)
	assert.Equal(t, int64(150_000), got)

	// 50% of 1_000_001 = 500_000.5 -> 500_001
	got, err = fp.CancellationFee(1_000_001, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(500_001), got)
}

func TestFeePolicy_QuoteBooking(t *testing.T) {
	fp := usecase.NewFeePolicy(config.DefaultFees())

	q, err := fp.QuoteBooking(1_000_000, 48)
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), q.HirerServiceFee)
	assert.Equal(t, int64(1_050_000), q.HirerTotal)
	assert.Equal(t, int64(150_000), q.PlatformFee)
	assert.Equal(t, int64(850_000), q.CompanionPayout)
	assert.True(t, q.FreeCancellation)

	_, err = fp.QuoteBooking(-1, 48)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}
