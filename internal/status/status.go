// Package status is the single authority for transaction status
// transitions. All lifecycle changes go through these functions; anything
// outside the transition table fails with InvalidTransitionError.
package status

import (
	"time"

	"github.com/ledgerflow/ledgerflow/internal/models"
)

// transitions is the valid state machine:
//
//	UNPROCESSED -> NORMALISED -> CATEGORISED
//	any non-ERROR -> ERROR
//	ERROR -> NORMALISED | CATEGORISED   (explicit retry)
//	CATEGORISED -> CATEGORISED          (re-categorization)
var transitions = map[models.ProcessingStatus][]models.ProcessingStatus{
	models.StatusUnprocessed: {models.StatusNormalised, models.StatusError},
	models.StatusNormalised:  {models.StatusCategorised, models.StatusError},
	models.StatusCategorised: {models.StatusCategorised, models.StatusError},
	models.StatusError:       {models.StatusNormalised, models.StatusCategorised},
}

// CanTransition reports whether from -> to is a valid transition.
func CanTransition(from, to models.ProcessingStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status is an end state of the pipeline.
func IsTerminal(s models.ProcessingStatus) bool {
	return s == models.StatusCategorised || s == models.StatusError
}

// CanProgress reports whether the automated pipeline has further work for
// a transaction in this status.
func CanProgress(s models.ProcessingStatus) bool {
	return s == models.StatusUnprocessed || s == models.StatusNormalised
}

func transition(tx *models.Transaction, to models.ProcessingStatus, now time.Time) error {
	if !CanTransition(tx.ProcessingStatus, to) {
		return &models.InvalidTransitionError{From: tx.ProcessingStatus, To: to}
	}
	tx.ProcessingStatus = to
	tx.TimestampModified = now
	return nil
}

// MarkNormalised transitions a transaction to NORMALISED and stamps the
// phase timestamp.
func MarkNormalised(tx *models.Transaction, now time.Time) error {
	if err := transition(tx, models.StatusNormalised, now); err != nil {
		return err
	}
	tx.TimestampNormalised = now
	return nil
}

// MarkCategorised transitions a transaction to CATEGORISED and stamps the
// phase timestamp.
func MarkCategorised(tx *models.Transaction, now time.Time) error {
	if err := transition(tx, models.StatusCategorised, now); err != nil {
		return err
	}
	tx.TimestampCategorised = now
	return nil
}

// MarkError transitions a transaction to ERROR with a message. Prior
// category assignments are preserved so a retry does not lose work.
func MarkError(tx *models.Transaction, msg string, now time.Time) error {
	if err := transition(tx, models.StatusError, now); err != nil {
		return err
	}
	tx.ErrorMessage = msg
	return nil
}

// RetryFromError moves an ERROR transaction back to a working state and
// clears the error message.
func RetryFromError(tx *models.Transaction, target models.ProcessingStatus, now time.Time) error {
	if tx.ProcessingStatus != models.StatusError {
		return &models.InvalidTransitionError{From: tx.ProcessingStatus, To: target}
	}
	if err := transition(tx, target, now); err != nil {
		return err
	}
	tx.ErrorMessage = ""
	switch target {
	case models.StatusNormalised:
		tx.TimestampNormalised = now
	case models.StatusCategorised:
		tx.TimestampCategorised = now
	}
	return nil
}
