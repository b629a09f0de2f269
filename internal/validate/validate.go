// Package validate provides the pure parsing and sanitization functions
// used by the normalization pipeline. All failures are reported as
// models.ValidationError values carrying field, value, and message.
package validate

import (
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerflow/ledgerflow/internal/models"
)

// ukLocation is the wall-clock zone source exports are recorded in.
// Naive timestamps are interpreted here and converted to UTC.
var ukLocation = mustLoadLocation("Europe/London")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("validate: cannot load location " + name + ": " + err.Error())
	}
	return loc
}

// zonedFormats carry an explicit offset and are honored as given.
var zonedFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02 15:04:05 -0700",
}

// naiveFormats lack a zone and are treated as UK wall-clock.
var naiveFormats = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"02-01-2006",
}

// ParseDate accepts ISO 8601 (date or datetime) and DD/MM/YYYY or
// DD-MM-YYYY forms and normalizes to a UTC instant. Fractional seconds
// are preserved.
func ParseDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, &models.ValidationError{Field: "date", Value: raw, Message: "empty date"}
	}

	for _, format := range zonedFormats {
		if t, err := time.Parse(format, trimmed); err == nil {
			return t.UTC(), nil
		}
	}
	for _, format := range naiveFormats {
		if t, err := time.ParseInLocation(format, trimmed, ukLocation); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, &models.ValidationError{Field: "date", Value: raw, Message: "unrecognized date format"}
}

// ParseDateTime combines separate date and time cells (Monzo exports carry
// them apart) before parsing.
func ParseDateTime(dateRaw, timeRaw string) (time.Time, error) {
	dateRaw = strings.TrimSpace(dateRaw)
	timeRaw = strings.TrimSpace(timeRaw)
	if timeRaw == "" {
		return ParseDate(dateRaw)
	}
	return ParseDate(dateRaw + " " + timeRaw)
}

var amountCleaner = strings.NewReplacer(",", "", "£", "", "$", "", "€", "", " ", "")

// ParseAmount accepts a numeric string, optionally with thousands commas
// or a leading currency symbol, preserving sign. NaN and infinities are
// rejected.
func ParseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, &models.ValidationError{Field: "amount", Value: raw, Message: "empty amount"}
	}

	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "nan") || strings.Contains(lower, "inf") {
		return decimal.Zero, &models.ValidationError{Field: "amount", Value: raw, Message: "non-finite amount"}
	}

	cleaned := amountCleaner.Replace(trimmed)
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &models.ValidationError{Field: "amount", Value: raw, Message: "invalid amount format"}
	}
	return d, nil
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Currency validates an ISO 4217 code against the supported set.
func Currency(code string, supported []string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if !currencyPattern.MatchString(trimmed) {
		return "", &models.ValidationError{Field: "currency", Value: code, Message: "must be a three-letter ISO 4217 code"}
	}
	for _, s := range supported {
		if s == trimmed {
			return trimmed, nil
		}
	}
	return "", &models.ValidationError{Field: "currency", Value: code, Message: "unsupported currency"}
}

// UUID validates RFC-4122 form and normalizes to lowercase.
func UUID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", &models.ValidationError{Field: "uuid", Value: raw, Message: "not a valid UUID"}
	}
	return strings.ToLower(id.String()), nil
}

const maxStringLength = 255

// RequiredString trims and enforces length 1..255.
func RequiredString(field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", &models.ValidationError{Field: field, Value: value, Message: "must not be empty"}
	}
	if len(trimmed) > maxStringLength {
		return "", &models.ValidationError{Field: field, Value: value, Message: "exceeds 255 characters"}
	}
	return trimmed, nil
}

// SanitizeForSheet defuses formula injection before persistence to the
// external store: values starting with = + - @ get a leading apostrophe.
func SanitizeForSheet(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@':
		return "'" + value
	}
	return value
}

var (
	secretAssignPattern = regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|auth)(\s*[:=]\s*)\S+`)
	urlBasicAuthPattern = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/\s:@]+:[^/\s@]+@`)
	emailPattern        = regexp.MustCompile(`[\w.+-]+@[\w-]+(\.[\w-]+)+`)
)

// SanitizeErrorMessage masks secrets and personal identifiers before an
// error is surfaced externally: credential assignments, URL basic auth,
// and email addresses all become ***.
func SanitizeErrorMessage(msg string) string {
	out := urlBasicAuthPattern.ReplaceAllString(msg, "${1}***@")
	out = secretAssignPattern.ReplaceAllString(out, "${1}${2}***")
	out = emailPattern.ReplaceAllString(out, "***")
	return out
}

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s]+`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

// NormalizeDescription lower-cases, strips non-alphanumerics, and
// collapses whitespace. Used for stable keys and similarity matching.
func NormalizeDescription(raw string) string {
	out := strings.ToLower(strings.TrimSpace(raw))
	out = nonAlphanumeric.ReplaceAllString(out, " ")
	out = whitespaceRun.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
