package models

import "time"

// RunType distinguishes the two pipeline phases.
type RunType string

const (
	RunNormalisation  RunType = "NORMALISATION"
	RunCategorisation RunType = "CATEGORISATION"
)

// RunStatus is the outcome of a processing run.
type RunStatus string

const (
	RunInProgress     RunStatus = "IN_PROGRESS"
	RunCompleted      RunStatus = "COMPLETED"
	RunFailed         RunStatus = "FAILED"
	RunPartialSuccess RunStatus = "PARTIAL_SUCCESS"
)

// RunError is one failure recorded against a run.
type RunError struct {
	SourceID string    `json:"source_id,omitempty"`
	RowIndex int       `json:"row_index,omitempty"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// ProcessingRun tracks a single invocation of the normalization or
// categorization pipeline.
type ProcessingRun struct {
	ID          string    `json:"id" badgerhold:"key"`
	RunType     RunType   `json:"run_type" badgerhold:"index"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Status      RunStatus `json:"status"`

	Processed  int `json:"processed"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates,omitempty"`

	ErrorLog  []RunError             `json:"error_log,omitempty"`
	Snapshots []ExchangeRateSnapshot `json:"snapshots,omitempty"` // normalization runs only
}

// RecordError appends a sanitized failure to the run's error log.
func (r *ProcessingRun) RecordError(sourceID string, rowIndex int, message string, at time.Time) {
	r.ErrorLog = append(r.ErrorLog, RunError{
		SourceID: sourceID,
		RowIndex: rowIndex,
		Message:  message,
		At:       at,
	})
}

// Finalize stamps the completion time and derives the terminal status.
// A cancelled or aborted run passes failed=true; otherwise the outcome
// depends on whether any work failed alongside successes.
func (r *ProcessingRun) Finalize(at time.Time, aborted bool) {
	r.CompletedAt = at
	switch {
	case aborted && r.Succeeded == 0:
		r.Status = RunFailed
	case aborted || r.Failed > 0:
		if r.Succeeded > 0 || r.Duplicates > 0 {
			r.Status = RunPartialSuccess
		} else {
			r.Status = RunFailed
		}
	default:
		r.Status = RunCompleted
	}
}
