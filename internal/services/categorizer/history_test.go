package categorizer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/models"
)

var baseDate = time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC)

func categorised(id, desc string, amount string, daysAgo int, manual bool) *models.Transaction {
	tx := &models.Transaction{
		ID:               id,
		BankSourceID:     models.SourceMonzo,
		Description:      desc,
		GBPAmount:        decimal.RequireFromString(amount),
		TransactionDate:  baseDate.AddDate(0, 0, -daysAgo),
		ProcessingStatus: models.StatusCategorised,
	}
	if manual {
		tx.CategoryManualID = "cat-groceries"
		tx.CategoryManualName = "Groceries"
	} else {
		tx.CategoryAIID = "cat-groceries"
		tx.CategoryAIName = "Groceries"
	}
	return tx
}

func newTestLearner(store *memResults) *Learner {
	cfg := common.NewDefaultConfig()
	return NewLearner(store, common.NewSilentLogger(), cfg.Historical)
}

func target(desc, amount string) *models.Transaction {
	return &models.Transaction{
		ID:              "target",
		Description:     desc,
		GBPAmount:       decimal.RequireFromString(amount),
		TransactionDate: baseDate,
	}
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, jaccard("tesco metro", "tesco metro"))
	assert.InDelta(t, 0.5, jaccard("tesco metro london", "tesco metro"), 0.001)
	assert.Equal(t, 0.0, jaccard("tesco", "sainsburys"))
	assert.Equal(t, 0.0, jaccard("", "tesco"))
}

func TestFindSimilar_ExactBeatsFuzzy(t *testing.T) {
	store := newMemResults(
		categorised("t1", "tesco metro", "-12.50", 5, false),
		categorised("t2", "tesco metro london", "-80.00", 10, false),
	)
	learner := newTestLearner(store)

	matches, err := learner.FindSimilar(context.Background(), target("tesco metro", "-12.00"), 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, models.MatchExact, matches[0].MatchType)
	assert.Equal(t, 100.0, matches[0].Score)
	assert.Equal(t, "t1", matches[0].Transaction.ID)
	assert.Equal(t, models.MatchFuzzy, matches[1].MatchType)
	assert.InDelta(t, 66.67, matches[1].Score, 0.1)
}

func TestFindSimilar_ManualOverrideDoublesWeight(t *testing.T) {
	store := newMemResults(
		categorised("ai", "tesco metro", "-12.50", 5, false),
		categorised("manual", "tesco metro", "-12.50", 6, true),
	)
	learner := newTestLearner(store)

	matches, err := learner.FindSimilar(context.Background(), target("tesco metro", "-12.50"), 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	// The manual override sorts first on weighted score.
	assert.Equal(t, "manual", matches[0].Transaction.ID)
	assert.True(t, matches[0].IsManualOverride)
	assert.Equal(t, 200.0, matches[0].WeightedScore)
	assert.Equal(t, 100.0, matches[1].WeightedScore)
}

func TestFindSimilar_FuzzyThreshold(t *testing.T) {
	store := newMemResults(
		// 1 shared token of 4 total: jaccard 0.25, below the 0.6 threshold,
		// and the amounts are far apart.
		categorised("far", "tesco superstore extra", "-99.00", 5, false),
	)
	learner := newTestLearner(store)

	matches, err := learner.FindSimilar(context.Background(), target("tesco metro", "-12.00"), 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindSimilar_AmountRange(t *testing.T) {
	store := newMemResults(
		categorised("close", "completely different words", "-10.50", 5, false),
	)
	learner := newTestLearner(store)

	// 5% off with a 10% tolerance scores (1 - 0.5) * 100 = 50.
	matches, err := learner.FindSimilar(context.Background(), target("tesco metro", "-10.00"), 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, models.MatchAmount, matches[0].MatchType)
	assert.InDelta(t, 50.0, matches[0].Score, 0.1)
}

func TestFindSimilar_LookbackWindow(t *testing.T) {
	store := newMemResults(
		categorised("recent", "tesco metro", "-12.50", 30, false),
		categorised("ancient", "tesco metro", "-12.50", 120, false),
	)
	learner := newTestLearner(store)

	matches, err := learner.FindSimilar(context.Background(), target("tesco metro", "-12.50"), 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "recent", matches[0].Transaction.ID)
}

func TestFindSimilar_ExcludesTargetAndUncategorised(t *testing.T) {
	self := categorised("target", "tesco metro", "-12.50", 0, false)
	pending := categorised("pending", "tesco metro", "-12.50", 2, false)
	pending.ProcessingStatus = models.StatusNormalised
	store := newMemResults(self, pending)
	learner := newTestLearner(store)

	matches, err := learner.FindSimilar(context.Background(), target("tesco metro", "-12.50"), 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindSimilar_HonorsLimit(t *testing.T) {
	store := newMemResults(
		categorised("a", "tesco metro", "-12.50", 1, false),
		categorised("b", "tesco metro", "-12.50", 2, false),
		categorised("c", "tesco metro", "-12.50", 3, true),
	)
	learner := newTestLearner(store)

	matches, err := learner.FindSimilar(context.Background(), target("tesco metro", "-12.50"), 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "c", matches[0].Transaction.ID)
}

func TestSuggestCategory(t *testing.T) {
	learner := newTestLearner(newMemResults())

	assert.Nil(t, learner.SuggestCategory(nil))

	matches := []models.SimilarityMatch{
		manualMatch("cat-groceries", "Groceries", 100),
		manualMatch("cat-groceries", "Groceries", 100),
		aiMatch("cat-shopping", "Shopping", 80),
	}
	suggestion := learner.SuggestCategory(matches)
	require.NotNil(t, suggestion)
	assert.Equal(t, "cat-groceries", suggestion.CategoryID)
	assert.Equal(t, "Groceries", suggestion.CategoryName)
	assert.Greater(t, suggestion.Confidence, 50.0)
	assert.LessOrEqual(t, suggestion.Confidence, 100.0)
}

func TestExamples(t *testing.T) {
	matches := []models.SimilarityMatch{manualMatch("cat-groceries", "Groceries", 100)}
	matches[0].Transaction.Description = "tesco metro"

	examples := Examples(matches)
	require.Len(t, examples, 1)
	assert.Equal(t, "tesco metro", examples[0].Description)
	assert.Equal(t, "cat-groceries", examples[0].CategoryID)
	assert.True(t, examples[0].WasManualOverride)
}
