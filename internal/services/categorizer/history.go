package categorizer

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
	"github.com/ledgerflow/ledgerflow/internal/models"
)

// matchPriority breaks score ties between match types.
var matchPriority = map[models.SimilarityMatchType]int{
	models.MatchExact:  3,
	models.MatchFuzzy:  2,
	models.MatchAmount: 1,
}

// Learner finds historical transactions similar to a target and
// aggregates them into a category suggestion. Matches from user-overridden
// transactions carry double weight.
type Learner struct {
	results interfaces.ResultStore
	logger  *common.Logger
	cfg     common.HistoricalConfig
}

// NewLearner creates a pattern learner over the result store.
func NewLearner(results interfaces.ResultStore, logger *common.Logger, cfg common.HistoricalConfig) *Learner {
	return &Learner{results: results, logger: logger, cfg: cfg}
}

// FindSimilar returns up to limit categorised transactions similar to the
// target, sorted by weighted score descending. Candidates are drawn from
// a lookback window around the target's date.
func (l *Learner) FindSimilar(ctx context.Context, target *models.Transaction, limit int) ([]models.SimilarityMatch, error) {
	lookback := time.Duration(l.cfg.LookbackDays) * 24 * time.Hour
	candidates, err := l.results.Query(ctx, models.TransactionFilter{
		Statuses: []models.ProcessingStatus{models.StatusCategorised},
		DateFrom: target.TransactionDate.Add(-lookback),
		DateTo:   target.TransactionDate.Add(lookback),
	})
	if err != nil {
		return nil, err
	}

	var matches []models.SimilarityMatch
	for _, cand := range candidates {
		if cand.ID == target.ID {
			continue
		}
		if id, _ := cand.EffectiveCategory(); id == "" {
			continue
		}

		match, ok := l.best(target, cand)
		if !ok {
			continue
		}

		match.IsManualOverride = cand.HasManualOverride()
		match.WeightedScore = match.Score
		if match.IsManualOverride {
			match.WeightedScore = match.Score * l.cfg.ManualOverrideWeight
		}
		matches = append(matches, match)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].WeightedScore != matches[j].WeightedScore {
			return matches[i].WeightedScore > matches[j].WeightedScore
		}
		return matchPriority[matches[i].MatchType] > matchPriority[matches[j].MatchType]
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// best evaluates every match type against one candidate and keeps the
// single highest-scoring one. Exact beats fuzzy beats amount on ties.
func (l *Learner) best(target, cand *models.Transaction) (models.SimilarityMatch, bool) {
	var best models.SimilarityMatch
	found := false

	consider := func(t models.SimilarityMatchType, score float64) {
		if !found || score > best.Score ||
			(score == best.Score && matchPriority[t] > matchPriority[best.MatchType]) {
			best = models.SimilarityMatch{Transaction: cand, MatchType: t, Score: score}
			found = true
		}
	}

	if target.Description == cand.Description {
		consider(models.MatchExact, 100)
	} else if sim := jaccard(target.Description, cand.Description); sim >= l.cfg.FuzzyThreshold {
		consider(models.MatchFuzzy, sim*100)
	}

	if !target.GBPAmount.IsZero() {
		diff := target.GBPAmount.Sub(cand.GBPAmount).Abs()
		rel, _ := diff.Div(target.GBPAmount.Abs()).Float64()
		if rel <= l.cfg.AmountTolerance {
			consider(models.MatchAmount, (1-rel/l.cfg.AmountTolerance)*100)
		}
	}

	return best, found
}

// jaccard computes token-set Jaccard similarity of two normalized
// descriptions.
func jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

// SuggestCategory aggregates weighted match scores per category and
// returns the strongest, or nil when there are no matches. Confidence
// blends how much of the weighted total the winner holds with the
// winner's average match quality, plus a bonus when the winner has
// user-confirmed backing.
func (l *Learner) SuggestCategory(matches []models.SimilarityMatch) *models.CategorySuggestion {
	if len(matches) == 0 {
		return nil
	}

	type tally struct {
		name      string
		weighted  float64
		scoreSum  float64
		count     int
		hasManual bool
	}

	totals := make(map[string]*tally)
	var allWeighted float64
	for _, m := range matches {
		id, name := m.Transaction.EffectiveCategory()
		t, ok := totals[id]
		if !ok {
			t = &tally{name: name}
			totals[id] = t
		}
		t.weighted += m.WeightedScore
		t.scoreSum += m.Score
		t.count++
		t.hasManual = t.hasManual || m.IsManualOverride
		allWeighted += m.WeightedScore
	}

	var winnerID string
	var winner *tally
	for id, t := range totals {
		if winner == nil || t.weighted > winner.weighted {
			winnerID, winner = id, t
		}
	}
	if winner == nil || allWeighted == 0 {
		return nil
	}

	agreement := winner.weighted / allWeighted
	avgQuality := winner.scoreSum / float64(winner.count)

	confidence := agreement*50 + avgQuality/100*50
	if winner.hasManual {
		confidence += 10
	}
	if confidence > 100 {
		confidence = 100
	}
	if confidence < 0 {
		confidence = 0
	}

	return &models.CategorySuggestion{
		CategoryID:   winnerID,
		CategoryName: winner.name,
		Confidence:   confidence,
	}
}

// Examples converts matches into the compact context form passed to the
// AI port.
func Examples(matches []models.SimilarityMatch) []models.SimilarExample {
	out := make([]models.SimilarExample, 0, len(matches))
	for _, m := range matches {
		id, name := m.Transaction.EffectiveCategory()
		out = append(out, models.SimilarExample{
			Description:       m.Transaction.Description,
			CategoryID:        id,
			CategoryName:      name,
			WasManualOverride: m.IsManualOverride,
			ConfidenceScore:   m.Transaction.ConfidenceScore,
		})
	}
	return out
}
