// Package domain defines the core value types for batch model evaluation:
// dataset rows, outbound call results, judge batches, and reconciled labels.
// Types here are pure data with validation; they carry no I/O dependencies
// so every other package can depend on them without cycles.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Row-level validation errors. These are load-time structural violations
// and abort a run before any network call is made.
var (
	// ErrEmptyRowID indicates a row with a missing or blank id.
	ErrEmptyRowID = errors.New("row id must not be empty")

	// ErrDuplicateRowID indicates two rows share the same id.
	ErrDuplicateRowID = errors.New("row id must be unique")

	// ErrEmptyInput indicates a row with no input text.
	ErrEmptyInput = errors.New("row input must not be empty")
)

// Result column names appended by the harness. Row i's values always land
// in row i's cells; existing cells are never mutated.
const (
	ColOutput           = "output"
	ColRequestStartedAt = "request_started_at"
	ColRequestElapsedMs = "request_elapsed_ms"
	ColResponseStatus   = "response_status"
	ColError            = "error"
	ColLabel            = "label"
	ColJudgeElapsedMs   = "judge_elapsed_ms"
	ColJudgeStatus      = "judge_status"
	ColJudgeError       = "judge_error"
)

// Row is one dataset record. Rows are created at load time and immutable
// thereafter; results are carried in separate per-row outcome values and
// written back as appended columns.
type Row struct {
	// ID is the unique, stable key for the row across the whole run.
	ID string

	// Scenario describes the test scenario the row belongs to.
	Scenario string

	// Input is the text sent to the model under test.
	Input string

	// GroundTruth is the reference answer handed to the judge. May be empty.
	GroundTruth string

	// Extra preserves free-form dataset columns verbatim.
	Extra map[string]string
}

// Validate checks the per-row structural invariants.
func (r Row) Validate() error {
	if r.ID == "" {
		return ErrEmptyRowID
	}
	if r.Input == "" {
		return fmt.Errorf("%w: row %s", ErrEmptyInput, r.ID)
	}
	return nil
}

// ValidateRows checks every row and enforces id uniqueness across the set.
// Uniqueness is validated once here and never rechecked downstream.
func ValidateRows(rows []Row) error {
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if _, ok := seen[r.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateRowID, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

// ModelOutcome is the per-row result of one model-endpoint sweep.
// Nullable columns use pointers; nil is written back as an empty cell.
type ModelOutcome struct {
	RowID     string
	Output    string
	StartedAt time.Time
	ElapsedMs *int64
	Status    *int
	Err       string
}
