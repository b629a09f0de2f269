// Package normalizer implements the normalization pipeline: raw source
// rows in, validated GBP-denominated transactions out.
package normalizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgerflow/ledgerflow/internal/adapters"
	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
	"github.com/ledgerflow/ledgerflow/internal/models"
	"github.com/ledgerflow/ledgerflow/internal/status"
	"github.com/ledgerflow/ledgerflow/internal/validate"
)

// Service implements the NormalizerService port.
type Service struct {
	results   interfaces.ResultStore
	sources   interfaces.SourceStore
	converter *Converter
	clock     interfaces.Clock
	logger    *common.Logger

	supportedCurrencies []string
}

// NewService creates a normalizer over the given stores and converter.
func NewService(
	results interfaces.ResultStore,
	sources interfaces.SourceStore,
	converter *Converter,
	clock interfaces.Clock,
	logger *common.Logger,
	supportedCurrencies []string,
) *Service {
	return &Service{
		results:             results,
		sources:             sources,
		converter:           converter,
		clock:               clock,
		logger:              logger,
		supportedCurrencies: supportedCurrencies,
	}
}

// NormalizeSource processes every data row of one source. A bad row is
// recorded against the run and skipped; it never aborts the rest of the
// source. Duplicate rows are counted and skipped without error.
func (s *Service) NormalizeSource(ctx context.Context, run *models.ProcessingRun, source models.BankSource) error {
	adapter, err := adapters.ForSource(source.ID)
	if err != nil {
		return err
	}

	rows, err := s.sources.ReadRaw(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to read source %s: %w", source.ID, err)
	}

	s.logger.Info().
		Str("source", source.ID).
		Int("rows", len(rows)).
		Msg("Normalizing source")

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		run.Processed++

		rec, err := adapter.Parse(row, s.supportedCurrencies)
		if err != nil {
			run.Failed++
			run.RecordError(source.ID, row.Index, validate.SanitizeErrorMessage(err.Error()), s.clock.Now())
			s.logger.Warn().
				Str("source", source.ID).
				Int("row", row.Index).
				Err(err).
				Msg("Row rejected")
			continue
		}

		existing, err := s.results.FindByKey(ctx, rec.SourceID, rec.OriginalTransactionID)
		if err != nil {
			return err
		}
		if existing != nil {
			run.Duplicates++
			continue
		}

		tx := s.buildTransaction(rec)

		if err := s.convert(ctx, tx, rec); err != nil {
			// Conversion failures still produce a row, parked in ERROR so
			// the money is visible and a later run can repair it.
			run.Failed++
			run.RecordError(source.ID, row.Index, validate.SanitizeErrorMessage(err.Error()), s.clock.Now())
			if markErr := status.MarkError(tx, validate.SanitizeErrorMessage(err.Error()), s.clock.Now()); markErr != nil {
				return markErr
			}
		} else {
			if err := status.MarkNormalised(tx, s.clock.Now()); err != nil {
				return err
			}
		}

		if err := s.results.Append(ctx, tx); err != nil {
			if models.IsDuplicate(err) {
				run.Duplicates++
				continue
			}
			return err
		}

		if tx.ProcessingStatus == models.StatusNormalised {
			run.Succeeded++
		}

		if !source.HasNativeID {
			s.writeBack(ctx, source, row.Index, rec.OriginalTransactionID)
		}
	}

	return nil
}

// buildTransaction assembles the initial transaction from a parsed record.
func (s *Service) buildTransaction(rec *models.RawRecord) *models.Transaction {
	now := s.clock.Now()
	return &models.Transaction{
		ID:                    uuid.NewString(),
		BankSourceID:          rec.SourceID,
		OriginalTransactionID: rec.OriginalTransactionID,
		TransactionDate:       rec.Date,
		Description:           rec.NormalizedDescription,
		TransactionType:       rec.Type,
		Notes:                 rec.Notes,
		Country:               rec.Country,
		OriginalAmount:        rec.Amount,
		OriginalCurrency:      rec.Currency,
		ProcessingStatus:      models.StatusUnprocessed,
		TimestampCreated:      now,
		TimestampModified:     now,
	}
}

// convert fills in the GBP amount: a source-provided GBP column wins, GBP
// rows pass through, everything else goes through the run's rate snapshot.
// When the GBP column covers a non-GBP row, the rate the bank applied is
// recovered from the two amounts so non-GBP rows always carry their rate.
func (s *Service) convert(ctx context.Context, tx *models.Transaction, rec *models.RawRecord) error {
	if rec.GBPAmount != nil && !rec.Amount.IsZero() {
		tx.GBPAmount = rec.GBPAmount.RoundBank(2)
		if rec.Currency != "GBP" {
			rate := tx.GBPAmount.Div(rec.Amount).Round(6)
			tx.ExchangeRate = &rate
		}
		return nil
	}

	gbp, rate, err := s.converter.Convert(ctx, rec.Amount, rec.Currency)
	if err != nil {
		return err
	}
	tx.GBPAmount = gbp
	tx.ExchangeRate = rate
	return nil
}

// writeBack records a synthesized ID in the source export. Best effort;
// stores without write-back support are silently skipped.
func (s *Service) writeBack(ctx context.Context, source models.BankSource, rowIndex int, originalID string) {
	err := s.sources.WriteBackID(ctx, source, rowIndex, originalID)
	if err == nil || errors.Is(err, models.ErrWriteBackUnsupported) {
		return
	}
	s.logger.Warn().
		Str("source", source.ID).
		Int("row", rowIndex).
		Err(err).
		Msg("ID write-back failed")
}

// Ensure Service implements NormalizerService.
var _ interfaces.NormalizerService = (*Service)(nil)
