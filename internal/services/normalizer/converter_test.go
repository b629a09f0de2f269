package normalizer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow/ledgerflow/internal/common"
)

func fastRetry() common.RetryOptions {
	opts := common.DefaultRetryOptions()
	opts.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return opts
}

func TestConvert_GBPPassesThrough(t *testing.T) {
	fx := newFakeFX(nil)
	conv := NewConverter(fx, testClock, common.NewSilentLogger(), fastRetry())
	conv.BeginRun("run-1")

	gbp, rate, err := conv.Convert(context.Background(), decimal.RequireFromString("-23.45"), "GBP")
	require.NoError(t, err)
	assert.True(t, gbp.Equal(decimal.RequireFromString("-23.45")))
	assert.Nil(t, rate)
	assert.Equal(t, 0, fx.callCount("GBP"))
}

func TestConvert_AppliesRateWithBankersRounding(t *testing.T) {
	fx := newFakeFX(map[string]string{"EUR": "0.85"})
	conv := NewConverter(fx, testClock, common.NewSilentLogger(), fastRetry())
	conv.BeginRun("run-1")

	gbp, rate, err := conv.Convert(context.Background(), decimal.RequireFromString("-50.00"), "EUR")
	require.NoError(t, err)
	assert.True(t, gbp.Equal(decimal.RequireFromString("-42.50")), "got %s", gbp)
	require.NotNil(t, rate)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.85")))

	// 2.345 * 1 rounds half to even: 2.34.
	fx2 := newFakeFX(map[string]string{"USD": "1"})
	conv2 := NewConverter(fx2, testClock, common.NewSilentLogger(), fastRetry())
	conv2.BeginRun("run-1")
	gbp, _, err = conv2.Convert(context.Background(), decimal.RequireFromString("2.345"), "USD")
	require.NoError(t, err)
	assert.True(t, gbp.Equal(decimal.RequireFromString("2.34")), "got %s", gbp)
}

func TestConvert_OneFetchPerCurrencyPerRun(t *testing.T) {
	fx := newFakeFX(map[string]string{"EUR": "0.85", "USD": "0.79"})
	conv := NewConverter(fx, testClock, common.NewSilentLogger(), fastRetry())
	conv.BeginRun("run-1")

	for i := 0; i < 5; i++ {
		_, rate, err := conv.Convert(context.Background(), decimal.RequireFromString("10"), "EUR")
		require.NoError(t, err)
		assert.True(t, rate.Equal(decimal.RequireFromString("0.85")))
	}
	_, _, err := conv.Convert(context.Background(), decimal.RequireFromString("10"), "USD")
	require.NoError(t, err)

	assert.Equal(t, 1, fx.callCount("EUR"))
	assert.Equal(t, 1, fx.callCount("USD"))

	snaps := conv.Snapshots()
	require.Len(t, snaps, 2)
	for _, snap := range snaps {
		assert.Equal(t, "run-1", snap.ProcessingRunID)
		assert.Equal(t, "GBP", snap.Base)
		assert.Equal(t, "fake", snap.Provider)
	}
}

func TestConvert_NewRunRefetches(t *testing.T) {
	fx := newFakeFX(map[string]string{"EUR": "0.85"})
	conv := NewConverter(fx, testClock, common.NewSilentLogger(), fastRetry())

	conv.BeginRun("run-1")
	_, _, err := conv.Convert(context.Background(), decimal.RequireFromString("10"), "EUR")
	require.NoError(t, err)

	conv.BeginRun("run-2")
	assert.Empty(t, conv.Snapshots())
	_, _, err = conv.Convert(context.Background(), decimal.RequireFromString("10"), "EUR")
	require.NoError(t, err)

	assert.Equal(t, 2, fx.callCount("EUR"))
}

func TestConvert_RetriesTransientFailures(t *testing.T) {
	fx := newFakeFX(map[string]string{"JPY": "0.0052"})
	fx.fail["JPY"] = 503
	conv := NewConverter(fx, testClock, common.NewSilentLogger(), fastRetry())
	conv.BeginRun("run-1")

	_, _, err := conv.Convert(context.Background(), decimal.RequireFromString("1000"), "JPY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempts=5")
	assert.Equal(t, 5, fx.callCount("JPY"))
}
