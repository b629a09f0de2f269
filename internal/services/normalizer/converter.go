package normalizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
	"github.com/ledgerflow/ledgerflow/internal/models"
)

// Converter turns foreign-currency amounts into GBP using one rate per
// currency per run. The first conversion of a currency fetches and pins
// the rate; every later conversion in the run reuses it, so a run is
// internally consistent even if the provider moves mid-run.
type Converter struct {
	client    interfaces.ExchangeRateClient
	clock     interfaces.Clock
	logger    *common.Logger
	retryOpts common.RetryOptions

	mu    sync.Mutex
	runID string
	rates map[string]models.ExchangeRateSnapshot
}

// NewConverter creates a converter over the given rate client.
func NewConverter(client interfaces.ExchangeRateClient, clock interfaces.Clock, logger *common.Logger, retryOpts common.RetryOptions) *Converter {
	return &Converter{
		client:    client,
		clock:     clock,
		logger:    logger,
		retryOpts: retryOpts,
		rates:     make(map[string]models.ExchangeRateSnapshot),
	}
}

// BeginRun discards any previous snapshot and scopes future rates to the
// given run.
func (c *Converter) BeginRun(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runID = runID
	c.rates = make(map[string]models.ExchangeRateSnapshot)
}

// Snapshots returns the rates captured during the current run.
func (c *Converter) Snapshots() []models.ExchangeRateSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ExchangeRateSnapshot, 0, len(c.rates))
	for _, snap := range c.rates {
		out = append(out, snap)
	}
	return out
}

// Convert returns the GBP value of amount in the given currency, rounded
// to 2 decimal places with banker's rounding, plus the rate applied. GBP
// amounts pass through unconverted with a nil rate.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, *decimal.Decimal, error) {
	if currency == "GBP" {
		return amount.RoundBank(2), nil, nil
	}

	snap, err := c.rate(ctx, currency)
	if err != nil {
		return decimal.Zero, nil, err
	}

	rate := snap.Rate
	return amount.Mul(rate).RoundBank(2), &rate, nil
}

// rate returns the pinned snapshot for a currency, fetching it on first
// use. The lock is held across the fetch so concurrent conversions of the
// same currency cannot pin different rates.
func (c *Converter) rate(ctx context.Context, currency string) (models.ExchangeRateSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if snap, ok := c.rates[currency]; ok {
		return snap, nil
	}

	var fetched decimal.Decimal
	err := common.Retry(ctx, func() error {
		var opErr error
		fetched, opErr = c.client.GetRate(ctx, currency)
		return opErr
	}, c.retryOpts)
	if err != nil {
		return models.ExchangeRateSnapshot{}, fmt.Errorf("failed to fetch %s rate: %w", currency, err)
	}

	snap := models.ExchangeRateSnapshot{
		Base:            "GBP",
		Target:          currency,
		Rate:            fetched,
		FetchedAt:       c.clock.Now(),
		Provider:        c.client.Provider(),
		ProcessingRunID: c.runID,
	}
	c.rates[currency] = snap

	c.logger.Info().
		Str("currency", currency).
		Str("rate", fetched.String()).
		Str("run_id", c.runID).
		Msg("Exchange rate pinned for run")

	return snap, nil
}
