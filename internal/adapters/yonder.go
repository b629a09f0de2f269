package adapters

import (
	"strings"
	"time"

	"github.com/ledgerflow/ledgerflow/internal/models"
	"github.com/ledgerflow/ledgerflow/internal/validate"
)

// yonderAdapter maps Yonder's export schema. Yonder states debit/credit
// literally, carries a pre-converted GBP amount column, and has no native
// transaction ID.
type yonderAdapter struct{}

func (a *yonderAdapter) SourceID() string    { return models.SourceYonder }
func (a *yonderAdapter) DisplayName() string { return "Yonder" }
func (a *yonderAdapter) HasNativeID() bool   { return false }

func (a *yonderAdapter) Parse(row models.SourceRow, supportedCurrencies []string) (*models.RawRecord, error) {
	date, err := validate.ParseDate(row.Get("Date/Time of transaction"))
	if err != nil {
		return nil, err
	}

	amount, err := validate.ParseAmount(row.Get("Amount"))
	if err != nil {
		return nil, err
	}

	rawType := strings.ToLower(strings.TrimSpace(row.Get("Debit or Credit")))
	var txType models.TransactionType
	switch rawType {
	case "credit":
		txType = models.TypeCredit
	case "debit", "":
		txType = models.TypeDebit
	default:
		return nil, validationErr("transaction_type", rawType, "expected Debit or Credit")
	}

	rec := &models.RawRecord{
		SourceID:    models.SourceYonder,
		RowIndex:    row.Index,
		Date:        date,
		Description: composeDescription(row.Get("Description")),
		Amount:      amount,
		Currency:    row.Get("Currency"),
		Type:        txType,
		Country:     strings.TrimSpace(row.Get("Country")),
	}

	// The GBP column, when present, is preferred over converting the
	// original amount.
	if gbpRaw := strings.TrimSpace(row.Get("Amount (GBP)")); gbpRaw != "" {
		gbp, err := validate.ParseAmount(gbpRaw)
		if err != nil {
			return nil, err
		}
		rec.GBPAmount = &gbp
	}

	if err := finishRecord(rec, supportedCurrencies); err != nil {
		return nil, err
	}

	rec.OriginalTransactionID = a.reference(date, rec.NormalizedDescription)
	return rec, nil
}

// reference synthesizes the stable transaction reference:
// "<date>T<HH:MM>_<truncated description>". Amount is deliberately
// excluded so rate changes do not mint new keys.
func (a *yonderAdapter) reference(date time.Time, normalizedDescription string) string {
	desc := strings.ReplaceAll(truncate(normalizedDescription, 24), " ", "-")
	if desc == "" {
		desc = "unknown"
	}
	return date.Format("2006-01-02T15:04") + "_" + desc
}
