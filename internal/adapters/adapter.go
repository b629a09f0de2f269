// Package adapters maps per-bank export schemas onto the canonical raw
// record consumed by the normalizer. One adapter per source; unknown
// sources fail fast.
package adapters

import (
	"fmt"
	"strings"

	"github.com/ledgerflow/ledgerflow/internal/models"
	"github.com/ledgerflow/ledgerflow/internal/validate"
)

// Adapter owns a source's column mapping, date parsing rules, sign
// convention, and transaction-ID scheme. Parse returns a complete
// RawRecord or an error, never a partial record.
type Adapter interface {
	SourceID() string
	DisplayName() string
	HasNativeID() bool
	Parse(row models.SourceRow, supportedCurrencies []string) (*models.RawRecord, error)
}

var registry = map[string]Adapter{
	models.SourceMonzo:   &monzoAdapter{},
	models.SourceRevolut: &revolutAdapter{},
	models.SourceYonder:  &yonderAdapter{},
}

// ForSource returns the adapter for a bank source ID.
func ForSource(id string) (Adapter, error) {
	adapter, ok := registry[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for source %q", id)
	}
	return adapter, nil
}

// Sources returns the bank source configurations for all registered
// adapters.
func Sources() []models.BankSource {
	out := make([]models.BankSource, 0, len(registry))
	for _, a := range []Adapter{registry[models.SourceMonzo], registry[models.SourceRevolut], registry[models.SourceYonder]} {
		out = append(out, models.BankSource{
			ID:          a.SourceID(),
			DisplayName: a.DisplayName(),
			HasNativeID: a.HasNativeID(),
			IsActive:    true,
		})
	}
	return out
}

// firstPresent returns the first non-empty cell among the candidate
// headers, supporting per-field header synonyms.
func firstPresent(row models.SourceRow, headers ...string) string {
	for _, h := range headers {
		if v := strings.TrimSpace(row.Get(h)); v != "" {
			return v
		}
	}
	return ""
}

// composeDescription joins non-empty, non-duplicate parts into one
// human-readable description.
func composeDescription(parts ...string) string {
	var out []string
	seen := map[string]bool{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return strings.Join(out, " ")
}

// truncate limits s to n bytes for reference generation.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func validationErr(field, value, msg string) error {
	return &models.ValidationError{Field: field, Value: value, Message: msg}
}

// finishRecord applies the validation common to every source: required
// description, normalized description, currency membership, and the sign
// convention.
func finishRecord(rec *models.RawRecord, supportedCurrencies []string) error {
	desc, err := validate.RequiredString("description", rec.Description)
	if err != nil {
		return err
	}
	rec.Description = desc
	rec.NormalizedDescription = validate.NormalizeDescription(desc)
	if rec.NormalizedDescription == "" {
		return validationErr("description", desc, "empty after normalization")
	}

	ccy, err := validate.Currency(rec.Currency, supportedCurrencies)
	if err != nil {
		return err
	}
	rec.Currency = ccy

	forceSign(rec)
	return nil
}

// forceSign aligns the amounts with the classified transaction type:
// debits are stored negative, credits positive, whatever sign the export
// used. Applies to the GBP column too so converted and source-provided
// amounts agree.
func forceSign(rec *models.RawRecord) {
	want := 1
	if rec.Type == models.TypeDebit {
		want = -1
	}
	if rec.Amount.Sign()*want < 0 {
		rec.Amount = rec.Amount.Neg()
	}
	if rec.GBPAmount != nil && rec.GBPAmount.Sign()*want < 0 {
		flipped := rec.GBPAmount.Neg()
		rec.GBPAmount = &flipped
	}
}
