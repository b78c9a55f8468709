package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ahrav/go-autoeval/internal/domain"
)

// Loader errors.
var (
	// ErrMissingColumn indicates a required canonical column is absent
	// after header normalization.
	ErrMissingColumn = errors.New("required column missing")

	// ErrEmptyDataset indicates a file with no data records.
	ErrEmptyDataset = errors.New("dataset has no records")
)

// Canonical column names required of every test set.
const (
	ColID          = "id"
	ColScenario    = "scenario"
	ColInput       = "input"
	ColGroundTruth = "ground_truth"
)

// columnAliases maps each canonical column to the header spellings
// accepted for it. Extend here when a new dataset dialect shows up.
var columnAliases = map[string][]string{
	ColID:          {"id", "ID", "Id", "index"},
	ColScenario:    {"scenario", "Scenario", "case"},
	ColInput:       {"input", "Input", "prompt", "question"},
	ColGroundTruth: {"ground_truth", "groundtruth", "reference", "expected", "answer_key"},
}

var requiredColumns = []string{ColID, ColScenario, ColInput, ColGroundTruth}

// Load reads a CSV or Excel dataset, normalizes its headers, and validates
// the structural invariants (all required columns present, unique non-empty
// ids, non-empty inputs). Any violation is fatal before any network call.
func Load(path string) (*Table, error) {
	kind, err := DetectKind(path)
	if err != nil {
		return nil, err
	}

	var table *Table
	switch kind {
	case KindCSV:
		table, err = loadCSV(path)
	case KindExcel:
		table, err = loadExcel(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if table.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDataset, path)
	}

	if err := normalizeHeaders(table); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if _, err := Rows(table); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return table, nil
}

// Rows projects the table onto domain rows, preserving free-form columns
// verbatim, and validates the set.
func Rows(t *Table) ([]domain.Row, error) {
	canonical := map[string]struct{}{
		ColID: {}, ColScenario: {}, ColInput: {}, ColGroundTruth: {},
	}

	rows := make([]domain.Row, t.Len())
	for i := range t.Records {
		row := domain.Row{
			ID:          strings.TrimSpace(t.Get(i, ColID)),
			Scenario:    t.Get(i, ColScenario),
			Input:       t.Get(i, ColInput),
			GroundTruth: t.Get(i, ColGroundTruth),
		}
		for c, name := range t.Columns {
			if _, ok := canonical[name]; ok {
				continue
			}
			if row.Extra == nil {
				row.Extra = make(map[string]string)
			}
			row.Extra[name] = t.Records[i][c]
		}
		rows[i] = row
	}

	if err := domain.ValidateRows(rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Save writes the table to a CSV or Excel file chosen by extension.
func Save(t *Table, path string) error {
	kind, err := DetectKind(path)
	if err != nil {
		return err
	}
	switch kind {
	case KindCSV:
		return saveCSV(t, path)
	case KindExcel:
		return saveExcel(t, path)
	}
	return nil
}

// normalizeHeaders renames alias headers to canonical names and verifies
// every required column is present.
func normalizeHeaders(t *Table) error {
	for i, header := range t.Columns {
		trimmed := strings.TrimSpace(header)
	aliases:
		for canonical, names := range columnAliases {
			for _, alias := range names {
				if trimmed == alias {
					t.Columns[i] = canonical
					break aliases
				}
			}
		}
	}

	var missing []string
	for _, name := range requiredColumns {
		if t.ColumnIndex(name) < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

func loadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Table{}, nil
	}
	return tableFromRecords(records), nil
}

func loadExcel(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Table{}, nil
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Table{}, nil
	}
	return tableFromRecords(records), nil
}

// tableFromRecords builds a table from a header row plus data rows,
// padding or truncating ragged records to the header width.
func tableFromRecords(records [][]string) *Table {
	t := &Table{Columns: records[0]}
	width := len(t.Columns)
	for _, rec := range records[1:] {
		row := make([]string, width)
		copy(row, rec)
		t.Records = append(t.Records, row)
	}
	return t
}

func saveCSV(t *Table, path string) error {
	if err := EnsureDir(dirOf(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		_ = f.Close()
		return err
	}
	for _, rec := range t.Records {
		if err := w.Write(rec); err != nil {
			_ = f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func saveExcel(t *Table, path string) error {
	if err := EnsureDir(dirOf(path)); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	all := append([][]string{t.Columns}, t.Records...)
	for i, rec := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		vals := make([]any, len(rec))
		for j, v := range rec {
			vals[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func dirOf(path string) string {
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}
