package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnsupportedFormat indicates a dataset file whose extension is neither
// .csv nor .xlsx.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// Kind identifies a supported tabular file format.
type Kind string

const (
	// KindCSV is a UTF-8 comma-separated file with a header row.
	KindCSV Kind = "csv"

	// KindExcel is an xlsx workbook; the first sheet is the dataset.
	KindExcel Kind = "excel"
)

// DetectKind maps a file path to its format by extension.
func DetectKind(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return KindCSV, nil
	case ".xlsx":
		return KindExcel, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// EnsureDir creates the directory if it does not exist.
func EnsureDir(dir string) error {
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// timestampNow returns the local time formatted for file names.
func timestampNow() string {
	return time.Now().Format("20060102_150405")
}

// CopyWithTimestamp copies src into destDir with a timestamp suffix on the
// base name and returns the destination path. The copy happens before any
// network call so the run operates on a frozen snapshot of the dataset.
func CopyWithTimestamp(src, destDir string) (string, error) {
	if err := EnsureDir(destDir); err != nil {
		return "", err
	}
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	dest := filepath.Join(destDir, fmt.Sprintf("%s_%s%s", name, timestampNow(), ext))

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dest, nil
}

// DeriveOutputPath builds <dir>/<base>_<timestamp>_<suffix><ext>, creating
// the directory as needed.
func DeriveOutputPath(dir, base, suffix, ext string) (string, error) {
	if err := EnsureDir(dir); err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s_%s%s", base, timestampNow(), suffix, ext)), nil
}

// BaseName returns the file name without directory or extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
