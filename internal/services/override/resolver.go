package override

import (
	"context"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
	"github.com/ledgerflow/ledgerflow/internal/models"
)

// DefaultMaxSuggestions bounds how many near-miss categories a failed
// resolution offers.
const DefaultMaxSuggestions = 3

// Resolver matches user-entered category names against the active
// category set. Matching is exact after trimming and case folding;
// inactive categories never match.
type Resolver struct {
	categories     interfaces.CategoriesStore
	logger         *common.Logger
	maxSuggestions int
}

// NewResolver creates a category name resolver.
func NewResolver(categories interfaces.CategoriesStore, logger *common.Logger) *Resolver {
	return &Resolver{
		categories:     categories,
		logger:         logger,
		maxSuggestions: DefaultMaxSuggestions,
	}
}

// Resolve matches one name against the active categories. Unresolved
// names return suggestions ranked prefix, substring, then edit distance.
func (r *Resolver) Resolve(ctx context.Context, name string) (*models.ResolveResult, error) {
	folded := fold(name)
	if folded == "" {
		return &models.ResolveResult{Found: false, Warning: "empty"}, nil
	}

	active, err := r.categories.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	for _, cat := range active {
		if fold(cat.Name) == folded {
			return &models.ResolveResult{Found: true, Category: cat}, nil
		}
	}

	return &models.ResolveResult{
		Found:       false,
		Warning:     "custom category",
		Suggestions: r.suggest(folded, active),
	}, nil
}

// ResolveBatch resolves each unique name once.
func (r *Resolver) ResolveBatch(ctx context.Context, names []string) (map[string]*models.ResolveResult, error) {
	out := make(map[string]*models.ResolveResult)
	for _, name := range names {
		key := fold(name)
		if _, done := out[key]; done {
			continue
		}
		result, err := r.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		out[key] = result
	}
	return out, nil
}

type scoredSuggestion struct {
	category *models.Category
	priority int // lower is better
	distance int
}

// suggest ranks near misses: prefix matches first, then substring
// matches, then anything within a small edit distance.
func (r *Resolver) suggest(folded string, active []*models.Category) []*models.Category {
	var scored []scoredSuggestion
	for _, cat := range active {
		candidate := fold(cat.Name)
		dist := levenshtein.ComputeDistance(folded, candidate)

		switch {
		case strings.HasPrefix(candidate, folded):
			scored = append(scored, scoredSuggestion{cat, 1, dist})
		case strings.Contains(candidate, folded):
			scored = append(scored, scoredSuggestion{cat, 2, dist})
		case dist <= 3:
			scored = append(scored, scoredSuggestion{cat, 3, dist})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].priority != scored[j].priority {
			return scored[i].priority < scored[j].priority
		}
		if scored[i].distance != scored[j].distance {
			return scored[i].distance < scored[j].distance
		}
		return scored[i].category.Name < scored[j].category.Name
	})

	if len(scored) > r.maxSuggestions {
		scored = scored[:r.maxSuggestions]
	}

	out := make([]*models.Category, len(scored))
	for i, s := range scored {
		out[i] = s.category
	}
	return out
}

// fold normalizes a name for comparison: trim then Unicode case fold.
func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
