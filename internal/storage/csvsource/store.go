// Package csvsource reads bank export CSV files as raw source rows and,
// when enabled, writes synthesized transaction IDs back into them.
package csvsource

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledgerflow/ledgerflow/internal/adapters"
	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/interfaces"
	"github.com/ledgerflow/ledgerflow/internal/models"
	"github.com/ledgerflow/ledgerflow/internal/validate"
)

// idColumn is the header under which synthesized IDs are written back.
const idColumn = "Original Transaction ID"

// Store reads source exports from a directory, one CSV per bank source,
// named after the lower-cased source ID.
type Store struct {
	dir          string
	writeBackIDs bool
	logger       *common.Logger
}

// NewStore creates a CSV source store over the given directory.
func NewStore(logger *common.Logger, dir string, writeBackIDs bool) *Store {
	return &Store{dir: dir, writeBackIDs: writeBackIDs, logger: logger}
}

func (s *Store) filename(sourceID string) string {
	return filepath.Join(s.dir, strings.ToLower(sourceID)+".csv")
}

// ListActiveSources returns the registered sources whose export file is
// present in the sources directory. A missing file deactivates the source
// for this run rather than failing it.
func (s *Store) ListActiveSources(ctx context.Context) ([]models.BankSource, error) {
	var out []models.BankSource
	for _, src := range adapters.Sources() {
		path := s.filename(src.ID)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				s.logger.Debug().Str("source", src.ID).Str("path", path).Msg("Export file absent, source skipped")
				continue
			}
			return nil, fmt.Errorf("failed to stat export for %s: %w", src.ID, err)
		}
		src.Filename = path
		out = append(out, src)
	}
	return out, nil
}

// ReadRaw parses a source export into header-keyed rows. Row indexes are
// 1-based over the data rows, matching what error reports and write-back
// use.
func (s *Store) ReadRaw(ctx context.Context, source models.BankSource) ([]models.SourceRow, error) {
	path := source.Filename
	if path == "" {
		path = s.filename(source.ID)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export for %s: %w", source.ID, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // exports occasionally have ragged rows

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read export for %s: %w", source.ID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("export for %s is empty", source.ID)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([]models.SourceRow, 0, len(records)-1)
	for i, record := range records[1:] {
		values := make(map[string]string, len(header))
		for j, cell := range record {
			if j >= len(header) {
				break
			}
			values[header[j]] = cell
		}
		rows = append(rows, models.SourceRow{Index: i + 1, Values: values})
	}

	s.logger.Debug().Str("source", source.ID).Int("rows", len(rows)).Msg("Export read")
	return rows, nil
}

// WriteBackID records a synthesized ID against a data row, adding the ID
// column on first use. The file is rewritten atomically.
func (s *Store) WriteBackID(ctx context.Context, source models.BankSource, rowIndex int, originalID string) error {
	if !s.writeBackIDs {
		return models.ErrWriteBackUnsupported
	}

	path := source.Filename
	if path == "" {
		path = s.filename(source.ID)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open export for %s: %w", source.ID, err)
	}
	records, err := csv.NewReader(f).ReadAll()
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to read export for %s: %w", source.ID, err)
	}
	if rowIndex < 1 || rowIndex >= len(records) {
		return fmt.Errorf("row %d out of range for %s", rowIndex, source.ID)
	}

	col := -1
	for i, h := range records[0] {
		if strings.EqualFold(strings.TrimSpace(h), idColumn) {
			col = i
			break
		}
	}
	if col == -1 {
		records[0] = append(records[0], idColumn)
		col = len(records[0]) - 1
	}

	for i := 1; i < len(records); i++ {
		for len(records[i]) <= col {
			records[i] = append(records[i], "")
		}
	}
	// Cell values that look like formulas are quoted before they reach
	// the export file.
	records[rowIndex][col] = validate.SanitizeForSheet(originalID)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".writeback-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	writer := csv.NewWriter(tmp)
	if err := writer.WriteAll(records); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write export for %s: %w", source.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace export for %s: %w", source.ID, err)
	}
	return nil
}

// Ensure Store implements SourceStore.
var _ interfaces.SourceStore = (*Store)(nil)
