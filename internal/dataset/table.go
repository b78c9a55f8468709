// Package dataset reads and writes the tabular files the harness operates
// on: CSV and Excel test sets in, result tables out. The in-memory shape
// is an ordered-column, ordered-record string table; result columns are
// appended by row position so row i's results always land on row i.
package dataset

import (
	"math"
	"strconv"
	"time"

	"github.com/ahrav/go-autoeval/internal/domain"
)

// Table is an ordered-row, named-column representation of a tabular file.
// Every record has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Records [][]string
}

// Len returns the number of data records.
func (t *Table) Len() int { return len(t.Records) }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// EnsureColumn appends the named column if missing, padding every record
// with an empty cell, and returns its index.
func (t *Table) EnsureColumn(name string) int {
	if i := t.ColumnIndex(name); i >= 0 {
		return i
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Records {
		t.Records[i] = append(t.Records[i], "")
	}
	return len(t.Columns) - 1
}

// Set writes a cell by record position and column name, creating the
// column if needed.
func (t *Table) Set(row int, column, value string) {
	col := t.EnsureColumn(column)
	t.Records[row][col] = value
}

// Get reads a cell by record position and column name; missing columns
// read as empty.
func (t *Table) Get(row int, column string) string {
	col := t.ColumnIndex(column)
	if col < 0 || row < 0 || row >= len(t.Records) {
		return ""
	}
	return t.Records[row][col]
}

// ModelResultColumns are the columns appended by the model sweep, in
// output order.
var ModelResultColumns = []string{
	domain.ColOutput,
	domain.ColRequestStartedAt,
	domain.ColRequestElapsedMs,
	domain.ColResponseStatus,
	domain.ColError,
}

// JudgeResultColumns are the columns appended by the judge sweep, in
// output order.
var JudgeResultColumns = []string{
	domain.ColLabel,
	domain.ColJudgeElapsedMs,
	domain.ColJudgeStatus,
	domain.ColJudgeError,
}

// ApplyModelOutcome writes one row's model-sweep result columns.
func (t *Table) ApplyModelOutcome(i int, out domain.ModelOutcome) {
	if i < 0 || i >= len(t.Records) {
		return
	}
	t.Set(i, domain.ColOutput, out.Output)
	if !out.StartedAt.IsZero() {
		t.Set(i, domain.ColRequestStartedAt, out.StartedAt.UTC().Format(time.RFC3339))
	}
	t.Set(i, domain.ColRequestElapsedMs, formatInt64Ptr(out.ElapsedMs))
	t.Set(i, domain.ColResponseStatus, formatIntPtr(out.Status))
	t.Set(i, domain.ColError, out.Err)
}

// ApplyModelOutcomes writes the model sweep's result columns. Outcomes are
// positional: outcome i belongs to record i.
func (t *Table) ApplyModelOutcomes(outcomes []domain.ModelOutcome) {
	for _, name := range ModelResultColumns {
		t.EnsureColumn(name)
	}
	for i, out := range outcomes {
		t.ApplyModelOutcome(i, out)
	}
}

// ApplyLabel writes one row's judge-sweep result columns.
func (t *Table) ApplyLabel(i int, l domain.ReconciledLabel) {
	if i < 0 || i >= len(t.Records) {
		return
	}
	if l.Label != nil {
		t.Set(i, domain.ColLabel, FormatLabel(*l.Label))
	}
	t.Set(i, domain.ColJudgeElapsedMs, formatInt64Ptr(l.JudgeElapsedMs))
	t.Set(i, domain.ColJudgeStatus, formatIntPtr(l.JudgeStatus))
	t.Set(i, domain.ColJudgeError, l.JudgeErr)
}

// ApplyLabels writes the judge sweep's result columns. Labels are
// positional: label i belongs to record i.
func (t *Table) ApplyLabels(labels []domain.ReconciledLabel) {
	for _, name := range JudgeResultColumns {
		t.EnsureColumn(name)
	}
	for i, l := range labels {
		t.ApplyLabel(i, l)
	}
}

// FormatLabel renders a score the way the label column stores it: whole
// values without a decimal point, everything else in minimal float form.
func FormatLabel(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatInt64Ptr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
