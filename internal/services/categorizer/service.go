// Package categorizer implements the categorization pipeline: batching,
// historical pattern matching, AI port calls, and confidence blending.
package categorizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
	"github.com/ledgerflow/ledgerflow/internal/models"
	"github.com/ledgerflow/ledgerflow/internal/status"
	"github.com/ledgerflow/ledgerflow/internal/validate"
)

// Service implements the CategorizerService port.
type Service struct {
	results   interfaces.ResultStore
	ai        interfaces.AICategorizer
	learner   *Learner
	calc      *Calculator
	clock     interfaces.Clock
	logger    *common.Logger
	cfg       common.CategorizationConfig
	retryOpts common.RetryOptions

	mu sync.Mutex // guards run mutations across parallel batches
}

// NewService creates a categorizer.
func NewService(
	results interfaces.ResultStore,
	ai interfaces.AICategorizer,
	learner *Learner,
	calc *Calculator,
	clock interfaces.Clock,
	logger *common.Logger,
	cfg common.CategorizationConfig,
	retryOpts common.RetryOptions,
) *Service {
	return &Service{
		results:   results,
		ai:        ai,
		learner:   learner,
		calc:      calc,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
		retryOpts: retryOpts,
	}
}

// Filter returns the transactions the automated pipeline may categorize:
// no manual override and no prior AI category.
func (s *Service) Filter(transactions []*models.Transaction) []*models.Transaction {
	out := make([]*models.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.NeedsCategorization() {
			out = append(out, tx)
		}
	}
	return out
}

// Categorize processes the transactions in independent batches. A failed
// batch marks its transactions and the run continues with the next one.
func (s *Service) Categorize(
	ctx context.Context,
	run *models.ProcessingRun,
	transactions []*models.Transaction,
	categories []*models.Category,
) (int, int, error) {
	active := make([]*models.Category, 0, len(categories))
	for _, cat := range categories {
		if cat.IsActive {
			active = append(active, cat)
		}
	}
	if len(active) == 0 {
		return 0, 0, models.ErrNoActiveCategories
	}

	for _, tx := range transactions {
		if tx.ProcessingStatus == models.StatusUnprocessed {
			return 0, 0, fmt.Errorf("transaction %s is UNPROCESSED; normalize before categorizing", tx.ID)
		}
	}

	activeIDs := make(map[string]bool, len(active))
	for _, cat := range active {
		activeIDs[cat.ID] = true
	}

	var batches [][]*models.Transaction
	for start := 0; start < len(transactions); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(transactions) {
			end = len(transactions)
		}
		batches = append(batches, transactions[start:end])
	}

	parallelism := s.cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	var (
		wg          sync.WaitGroup
		sem         = make(chan struct{}, parallelism)
		categorised int
		failed      int
	)

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(batch []*models.Transaction) {
			defer wg.Done()
			defer func() { <-sem }()

			ok, bad := s.processBatch(ctx, run, batch, active, activeIDs)

			s.mu.Lock()
			categorised += ok
			failed += bad
			s.mu.Unlock()
		}(batch)
	}
	wg.Wait()

	return categorised, failed, ctx.Err()
}

// processBatch runs one batch end to end: historical context, AI call,
// per-transaction validation and persistence.
func (s *Service) processBatch(
	ctx context.Context,
	run *models.ProcessingRun,
	batch []*models.Transaction,
	active []*models.Category,
	activeIDs map[string]bool,
) (categorised, failed int) {
	matchesByID := make(map[string][]models.SimilarityMatch)
	suggestionByID := make(map[string]*models.CategorySuggestion)
	var examples []models.SimilarExample

	if s.cfg.UseHistoricalContext {
		examples = s.gatherContext(ctx, batch, matchesByID, suggestionByID)
	}

	var aiResults []models.AIResult
	err := common.Retry(ctx, func() error {
		results, opErr := s.ai.CategorizeBatch(ctx, batch, active, examples)
		if opErr != nil {
			return opErr
		}
		aiResults = results
		return nil
	}, s.retryOpts)
	if err != nil {
		s.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Batch categorization failed")
		for _, tx := range batch {
			s.markFailed(ctx, run, tx, validate.SanitizeErrorMessage(err.Error()))
			failed++
		}
		return categorised, failed
	}

	resultByID := make(map[string]models.AIResult, len(aiResults))
	for _, res := range aiResults {
		resultByID[res.TransactionID] = res
	}

	now := s.clock.Now()
	for _, tx := range batch {
		res, ok := resultByID[tx.ID]
		if !ok {
			s.markFailed(ctx, run, tx, "No categorization result")
			failed++
			continue
		}
		if res.ConfidenceScore < 0 || res.ConfidenceScore > 100 {
			s.markFailed(ctx, run, tx, fmt.Sprintf("confidence score out of range: %.1f", res.ConfidenceScore))
			failed++
			continue
		}
		if !activeIDs[res.CategoryID] {
			s.markFailed(ctx, run, tx, fmt.Sprintf("unknown or inactive category: %s", res.CategoryID))
			failed++
			continue
		}

		breakdown := s.calc.Calculate(res.ConfidenceScore, res.CategoryID, matchesByID[tx.ID], suggestionByID[tx.ID])

		err := s.results.Update(ctx, tx.ID, func(t *models.Transaction) error {
			t.CategoryAIID = res.CategoryID
			t.CategoryAIName = res.CategoryName
			t.ConfidenceScore = breakdown.Final
			t.ErrorMessage = ""
			return status.MarkCategorised(t, now)
		})
		if err != nil {
			s.markFailed(ctx, run, tx, validate.SanitizeErrorMessage(err.Error()))
			failed++
			continue
		}

		s.logger.Debug().
			Str("id", tx.ID).
			Str("category", res.CategoryName).
			Float64("confidence", breakdown.Final).
			Bool("consensus", breakdown.Consensus).
			Bool("conflict", breakdown.Conflict).
			Msg("Transaction categorised")
		categorised++
	}

	return categorised, failed
}

// gatherContext collects historical matches for every transaction in the
// batch and flattens them into deduplicated prompt examples, capped at
// context_size x batch_size.
func (s *Service) gatherContext(
	ctx context.Context,
	batch []*models.Transaction,
	matchesByID map[string][]models.SimilarityMatch,
	suggestionByID map[string]*models.CategorySuggestion,
) []models.SimilarExample {
	maxExamples := s.cfg.ContextSize * s.cfg.BatchSize
	seen := make(map[string]bool)
	var examples []models.SimilarExample

	for _, tx := range batch {
		matches, err := s.learner.FindSimilar(ctx, tx, s.cfg.ContextSize)
		if err != nil {
			s.logger.Warn().Err(err).Str("id", tx.ID).Msg("Historical lookup failed")
			continue
		}
		matchesByID[tx.ID] = matches
		suggestionByID[tx.ID] = s.learner.SuggestCategory(matches)

		for _, ex := range Examples(matches) {
			key := ex.Description + "|" + ex.CategoryID
			if seen[key] || len(examples) >= maxExamples {
				continue
			}
			seen[key] = true
			examples = append(examples, ex)
		}
	}
	return examples
}

// markFailed parks a transaction in ERROR with a reason and records the
// failure against the run.
func (s *Service) markFailed(ctx context.Context, run *models.ProcessingRun, tx *models.Transaction, reason string) {
	now := s.clock.Now()

	err := s.results.Update(ctx, tx.ID, func(t *models.Transaction) error {
		return status.MarkError(t, reason, now)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("id", tx.ID).Msg("Failed to record categorization failure")
	}

	s.mu.Lock()
	run.RecordError(tx.BankSourceID, 0, reason, now)
	s.mu.Unlock()
}

// Ensure Service implements CategorizerService.
var _ interfaces.CategorizerService = (*Service)(nil)
