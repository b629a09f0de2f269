// Package override reacts to user edits of the manual category column,
// resolving entered names to category IDs. Manual assignments always win
// over AI ones and are never touched by the automated pipeline.
package override

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
	"github.com/ledgerflow/ledgerflow/internal/models"
)

// ManualCategoryColumn is the canonical name of the editable column.
const ManualCategoryColumn = "Manual Category"

// Service implements the OverrideService port.
type Service struct {
	results  interfaces.ResultStore
	resolver *Resolver
	clock    interfaces.Clock
	logger   *common.Logger
}

// NewService creates an override handler.
func NewService(
	results interfaces.ResultStore,
	resolver *Resolver,
	clock interfaces.Clock,
	logger *common.Logger,
) *Service {
	return &Service{
		results:  results,
		resolver: resolver,
		clock:    clock,
		logger:   logger,
	}
}

// HandleEdit processes one edit event. Events from the system's own
// writes, ambiguous events, and edits to other columns are ignored
// without error so write-backs cannot loop.
func (s *Service) HandleEdit(ctx context.Context, event models.EditEvent) error {
	if !event.IsUserEdit() {
		return nil
	}
	if !strings.EqualFold(strings.TrimSpace(event.Column), ManualCategoryColumn) {
		return nil
	}

	rows, err := s.orderedTransactions(ctx)
	if err != nil {
		return err
	}

	start, end := event.RowStart, event.RowEnd
	if end < start {
		end = start
	}

	for row := start; row <= end; row++ {
		tx, ok := rowTransaction(rows, row)
		if !ok {
			return fmt.Errorf("row %d has no transaction", row)
		}
		if err := s.applyValue(ctx, tx, event.NewValue); err != nil {
			return err
		}
	}
	return nil
}

// HandleRange bulk-resolves the manual names currently present on rows
// [startRow, endRow]. Names are resolved once each; only the manual
// category fields are written.
func (s *Service) HandleRange(ctx context.Context, startRow, endRow int) error {
	rows, err := s.orderedTransactions(ctx)
	if err != nil {
		return err
	}
	if endRow < startRow {
		endRow = startRow
	}

	var names []string
	var targets []*models.Transaction
	for row := startRow; row <= endRow; row++ {
		tx, ok := rowTransaction(rows, row)
		if !ok {
			continue
		}
		targets = append(targets, tx)
		if name := strings.TrimSpace(tx.CategoryManualName); name != "" {
			names = append(names, name)
		}
	}

	resolved, err := s.resolver.ResolveBatch(ctx, names)
	if err != nil {
		return err
	}

	for _, tx := range targets {
		name := strings.TrimSpace(tx.CategoryManualName)
		if name == "" {
			continue
		}

		result := resolved[fold(name)]
		if result == nil || !result.Found {
			s.warnCustom(name, result)
			continue
		}

		if err := s.writeOverride(ctx, tx.ID, result.Category.ID, result.Category.Name); err != nil {
			return err
		}
	}
	return nil
}

// applyValue applies one entered value to one transaction.
func (s *Service) applyValue(ctx context.Context, tx *models.Transaction, value string) error {
	trimmed := strings.TrimSpace(value)

	// Clearing the cell drops the override; the AI category becomes
	// effective again.
	if trimmed == "" {
		return s.writeOverride(ctx, tx.ID, "", "")
	}

	result, err := s.resolver.Resolve(ctx, trimmed)
	if err != nil {
		return err
	}

	if !result.Found {
		// Keep the literal name visible as a custom category; no ID.
		s.warnCustom(trimmed, result)
		return s.writeOverride(ctx, tx.ID, "", trimmed)
	}

	return s.writeOverride(ctx, tx.ID, result.Category.ID, result.Category.Name)
}

// writeOverride mutates only the manual category fields. It deliberately
// leaves status and AI fields alone so the write cannot re-enter the
// categorization pipeline.
func (s *Service) writeOverride(ctx context.Context, txID, categoryID, categoryName string) error {
	now := s.clock.Now()
	return s.results.Update(ctx, txID, func(t *models.Transaction) error {
		t.CategoryManualID = categoryID
		t.CategoryManualName = categoryName
		t.TimestampModified = now
		return nil
	})
}

func (s *Service) warnCustom(name string, result *models.ResolveResult) {
	event := s.logger.Warn().Str("name", name)
	if result != nil && len(result.Suggestions) > 0 {
		suggestions := make([]string, len(result.Suggestions))
		for i, cat := range result.Suggestions {
			suggestions[i] = cat.Name
		}
		event = event.Strs("suggestions", suggestions)
	}
	event.Msg("Custom category entered; no matching active category")
}

// orderedTransactions returns all transactions in the stable result
// ordering (date ascending) so row numbers are meaningful.
func (s *Service) orderedTransactions(ctx context.Context) ([]*models.Transaction, error) {
	return s.results.Query(ctx, models.TransactionFilter{})
}

// rowTransaction maps a 1-based row number onto the ordering.
func rowTransaction(rows []*models.Transaction, row int) (*models.Transaction, bool) {
	if row < 1 || row > len(rows) {
		return nil, false
	}
	return rows[row-1], true
}

// Ensure Service implements OverrideService.
var _ interfaces.OverrideService = (*Service)(nil)
