package adapters

import (
	"strings"
	"time"

	"github.com/ledgerflow/ledgerflow/internal/models"
	"github.com/ledgerflow/ledgerflow/internal/validate"
)

// revolutAdapter maps Revolut's export schema. Revolut has no native
// transaction ID; a reference is synthesized from the completion minute
// and transaction type, which stays stable across FX-rate changes.
type revolutAdapter struct{}

func (a *revolutAdapter) SourceID() string    { return models.SourceRevolut }
func (a *revolutAdapter) DisplayName() string { return "Revolut" }
func (a *revolutAdapter) HasNativeID() bool   { return false }

var revolutCreditTypes = map[string]bool{
	"TOPUP":            true,
	"REFUND":           true,
	"CASHBACK":         true,
	"TRANSFER_IN":      true,
	"INCOMING":         true,
	"INTEREST":         true,
	"EXCHANGE_IN":      true,
	"CARD_REFUND":      true,
	"ATM_REVERSAL":     true,
	"REWARD":           true,
	"DEPOSIT":          true,
	"PAYMENT_RECEIVED": true,
}

func (a *revolutAdapter) Parse(row models.SourceRow, supportedCurrencies []string) (*models.RawRecord, error) {
	// Prefer the completion timestamp; fall back to the start timestamp
	// for pending rows.
	dateRaw := firstPresent(row, "Completed Date", "Started Date")
	date, err := validate.ParseDate(dateRaw)
	if err != nil {
		return nil, err
	}

	amount, err := validate.ParseAmount(row.Get("Amount"))
	if err != nil {
		return nil, err
	}

	rawType := strings.ToUpper(strings.TrimSpace(row.Get("Type")))
	txType := models.TypeDebit
	if revolutCreditTypes[rawType] || (rawType == "" && amount.Sign() > 0) {
		txType = models.TypeCredit
	}

	rec := &models.RawRecord{
		SourceID:              models.SourceRevolut,
		RowIndex:              row.Index,
		Date:                  date,
		Description:           composeDescription(row.Get("Description"), row.Get("Product")),
		Amount:                amount,
		Currency:              row.Get("Currency"),
		Type:                  txType,
		OriginalTransactionID: a.reference(date, rawType),
	}

	if err := finishRecord(rec, supportedCurrencies); err != nil {
		return nil, err
	}
	return rec, nil
}

// reference synthesizes the stable transaction reference:
// "<date>T<HH:MM>_<TYPE>", e.g. "2025-11-15T10:05_CARD_PAYMENT".
// Amount is deliberately excluded so rate changes do not mint new keys.
func (a *revolutAdapter) reference(date time.Time, rawType string) string {
	if rawType == "" {
		rawType = "UNKNOWN"
	}
	return date.Format("2006-01-02T15:04") + "_" + rawType
}
