// Package coordinator orchestrates processing runs: one normalization and
// one categorization run may be in flight at a time.
package coordinator

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
	"github.com/ledgerflow/ledgerflow/internal/models"
	"github.com/ledgerflow/ledgerflow/internal/services/normalizer"
	"github.com/ledgerflow/ledgerflow/internal/validate"
)

// Service implements the CoordinatorService port.
type Service struct {
	storage     interfaces.StorageManager
	sources     interfaces.SourceStore
	normalizer  interfaces.NormalizerService
	categorizer interfaces.CategorizerService
	converter   *normalizer.Converter
	clock       interfaces.Clock
	logger      *common.Logger

	recategorize bool

	normMu sync.Mutex
	catMu  sync.Mutex
}

// NewService creates a run coordinator.
func NewService(
	storage interfaces.StorageManager,
	sources interfaces.SourceStore,
	normalizerSvc interfaces.NormalizerService,
	categorizerSvc interfaces.CategorizerService,
	converter *normalizer.Converter,
	clock interfaces.Clock,
	logger *common.Logger,
	recategorize bool,
) *Service {
	return &Service{
		storage:      storage,
		sources:      sources,
		normalizer:   normalizerSvc,
		categorizer:  categorizerSvc,
		converter:    converter,
		clock:        clock,
		logger:       logger,
		recategorize: recategorize,
	}
}

// RunNormalization processes every active source into the result store.
// Partial success is the normal outcome: a failing source or row is
// recorded against the run and the rest continues.
func (s *Service) RunNormalization(ctx context.Context) (*models.ProcessingRun, error) {
	if !s.normMu.TryLock() {
		return nil, models.ErrRunInProgress
	}
	defer s.normMu.Unlock()

	run := s.beginRun(models.RunNormalisation)
	s.converter.BeginRun(run.ID)

	if err := s.storage.RunStore().Save(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Info().Str("run_id", run.ID).Msg("Normalization run started")

	sources, err := s.sources.ListActiveSources(ctx)
	if err != nil {
		return s.finishRun(ctx, run, err)
	}

	var aborted error
	for _, source := range sources {
		if err := s.normalizer.NormalizeSource(ctx, run, source); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				aborted = err
				break
			}
			run.Failed++
			run.RecordError(source.ID, 0, validate.SanitizeErrorMessage(err.Error()), s.clock.Now())
			s.logger.Error().Err(err).Str("source", source.ID).Msg("Source failed")
		}
	}

	run.Snapshots = s.converter.Snapshots()
	return s.finishRun(ctx, run, aborted)
}

// RunCategorization hands candidate transactions to the categorizer in
// batches and records the outcome.
func (s *Service) RunCategorization(ctx context.Context) (*models.ProcessingRun, error) {
	if !s.catMu.TryLock() {
		return nil, models.ErrRunInProgress
	}
	defer s.catMu.Unlock()

	run := s.beginRun(models.RunCategorisation)
	if err := s.storage.RunStore().Save(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Info().Str("run_id", run.ID).Bool("recategorize", s.recategorize).Msg("Categorization run started")

	candidates, err := s.candidates(ctx)
	if err != nil {
		return s.finishRun(ctx, run, err)
	}
	if len(candidates) == 0 {
		s.logger.Info().Str("run_id", run.ID).Msg("Nothing to categorize")
		return s.finishRun(ctx, run, nil)
	}

	categories, err := s.storage.CategoriesStore().List(ctx)
	if err != nil {
		return s.finishRun(ctx, run, err)
	}

	categorised, failed, err := s.categorizer.Categorize(ctx, run, candidates, categories)
	run.Processed = len(candidates)
	run.Succeeded = categorised
	run.Failed = failed

	return s.finishRun(ctx, run, err)
}

// candidates selects the transactions a categorization run may touch:
// everything NORMALISED with no manual or AI category, plus previously
// categorised AI assignments when re-categorization is enabled. Manual
// overrides are never candidates.
func (s *Service) candidates(ctx context.Context) ([]*models.Transaction, error) {
	normalised, err := s.storage.ResultStore().Query(ctx, models.TransactionFilter{
		Statuses: []models.ProcessingStatus{models.StatusNormalised},
	})
	if err != nil {
		return nil, err
	}
	out := s.categorizer.Filter(normalised)

	if s.recategorize {
		noOverride := false
		categorised, err := s.storage.ResultStore().Query(ctx, models.TransactionFilter{
			Statuses:          []models.ProcessingStatus{models.StatusCategorised},
			HasManualOverride: &noOverride,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, categorised...)
	}
	return out, nil
}

func (s *Service) beginRun(runType models.RunType) *models.ProcessingRun {
	return &models.ProcessingRun{
		ID:        uuid.NewString(),
		RunType:   runType,
		StartedAt: s.clock.Now(),
		Status:    models.RunInProgress,
	}
}

// finishRun finalizes and persists the run record. The run's own error,
// if any, is recorded but does not mask the persisted stats.
func (s *Service) finishRun(ctx context.Context, run *models.ProcessingRun, runErr error) (*models.ProcessingRun, error) {
	if runErr != nil {
		run.RecordError("", 0, validate.SanitizeErrorMessage(runErr.Error()), s.clock.Now())
	}
	run.Finalize(s.clock.Now(), runErr != nil)

	if err := s.storage.RunStore().Save(ctx, run); err != nil {
		s.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to persist run record")
		if runErr == nil {
			runErr = err
		}
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Str("status", string(run.Status)).
		Int("processed", run.Processed).
		Int("succeeded", run.Succeeded).
		Int("failed", run.Failed).
		Int("duplicates", run.Duplicates).
		Msg("Run finished")

	return run, runErr
}

// Ensure Service implements CoordinatorService.
var _ interfaces.CoordinatorService = (*Service)(nil)
