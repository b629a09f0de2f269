package categorizer

import (
	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/models"
)

// Calculator blends the AI's confidence with historical evidence into one
// final score.
type Calculator struct {
	cfg        common.ConfidenceConfig
	historical common.HistoricalConfig
}

// NewCalculator creates a confidence calculator.
func NewCalculator(cfg common.ConfidenceConfig, historical common.HistoricalConfig) *Calculator {
	return &Calculator{cfg: cfg, historical: historical}
}

// Calculate combines the AI confidence with the historical evidence.
//
// The historical component is the average weighted match score normalized
// against its theoretical maximum (a perfect manual-override match), then
// damped when there are few matches. Agreement between the AI and the
// historical suggestion earns a bonus, disagreement a penalty that bites
// harder when it contradicts the user's own overrides.
func (c *Calculator) Calculate(
	aiConfidence float64,
	aiCategoryID string,
	matches []models.SimilarityMatch,
	suggestion *models.CategorySuggestion,
) models.ConfidenceBreakdown {
	b := models.ConfidenceBreakdown{
		AIScore:    clamp(aiConfidence, 0, 100),
		MatchCount: len(matches),
	}

	manualMatches := 0
	for _, m := range matches {
		if m.IsManualOverride {
			manualMatches++
		}
	}
	b.ManualMatchCount = manualMatches

	if len(matches) > 0 {
		var weightedSum float64
		for _, m := range matches {
			weightedSum += m.WeightedScore
		}
		maxWeighted := 100 * c.historical.ManualOverrideWeight
		b.HistoricalScore = weightedSum / float64(len(matches)) / maxWeighted * 100 * damping(len(matches))
	}

	if len(matches) >= c.cfg.MinMatches && suggestion != nil {
		if suggestion.CategoryID == aiCategoryID {
			b.Consensus = true
			boost := float64(manualMatches) * c.cfg.ManualOverrideBoost
			if boost > 2*c.cfg.ManualOverrideBoost {
				boost = 2 * c.cfg.ManualOverrideBoost
			}
			b.ConsensusBonus = c.cfg.ConsensusBonus + boost
		} else {
			b.Conflict = true
			b.ConflictPenalty = c.cfg.ConflictPenalty
			if manualMatches > 0 {
				// Disagreeing with the user's own corrections is worse
				// than disagreeing with old AI guesses.
				b.ConflictPenalty *= 1.5
			}
		}
	}

	// Conflicting history backs a different category; it cannot lend
	// support to the AI's choice, only penalize it.
	historical := b.HistoricalScore
	if b.Conflict {
		historical = 0
	}

	b.Final = clamp(
		b.AIScore*c.cfg.AIWeight+
			historical*c.cfg.HistoricalWeight+
			b.ConsensusBonus-
			b.ConflictPenalty,
		0, 100,
	)
	return b
}

// damping discounts thin historical evidence.
func damping(matchCount int) float64 {
	switch {
	case matchCount <= 0:
		return 0
	case matchCount == 1:
		return 0.7
	case matchCount == 2:
		return 0.85
	default:
		return 1.0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
