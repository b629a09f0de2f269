package adapters

import (
	"strings"

	"github.com/ledgerflow/ledgerflow/internal/models"
	"github.com/ledgerflow/ledgerflow/internal/validate"
)

// monzoAdapter maps Monzo's export schema. Monzo carries a native
// transaction ID and splits date and time across two columns.
type monzoAdapter struct{}

func (a *monzoAdapter) SourceID() string    { return models.SourceMonzo }
func (a *monzoAdapter) DisplayName() string { return "Monzo" }
func (a *monzoAdapter) HasNativeID() bool   { return true }

// creditTypes are the Monzo transaction types treated as money in.
// Everything else is a debit.
var monzoCreditTypes = map[string]bool{
	"credit":         true,
	"refund":         true,
	"incoming":       true,
	"faster payment": true,
}

func (a *monzoAdapter) Parse(row models.SourceRow, supportedCurrencies []string) (*models.RawRecord, error) {
	date, err := validate.ParseDateTime(row.Get("Date"), row.Get("Time"))
	if err != nil {
		return nil, err
	}

	amount, err := validate.ParseAmount(row.Get("Amount"))
	if err != nil {
		return nil, err
	}

	nativeID := strings.TrimSpace(firstPresent(row, "Transaction ID", "Transaction Id"))
	if nativeID == "" {
		return nil, validationErr("transaction_id", "", "Monzo rows must carry a native transaction ID")
	}

	rawType := strings.ToLower(strings.TrimSpace(row.Get("Type")))
	txType := models.TypeDebit
	if monzoCreditTypes[rawType] && amount.Sign() >= 0 {
		txType = models.TypeCredit
	} else if amount.Sign() > 0 {
		// Positive amounts on unclassified types are incoming funds.
		txType = models.TypeCredit
	}

	rec := &models.RawRecord{
		SourceID:              models.SourceMonzo,
		RowIndex:              row.Index,
		Date:                  date,
		Description:           composeDescription(row.Get("Name"), row.Get("Description")),
		Amount:                amount,
		Currency:              row.Get("Currency"),
		Type:                  txType,
		OriginalTransactionID: nativeID,
		Notes:                 strings.TrimSpace(row.Get("Notes and #tags")),
	}

	if err := finishRecord(rec, supportedCurrencies); err != nil {
		return nil, err
	}
	return rec, nil
}
