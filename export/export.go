// Package export writes run results as CSV.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/perbu/calcat/colorize"
)

// DefaultFileName is the name used for downloads.
const DefaultFileName = "categorized_events.csv"

// Header is the fixed column set.
var Header = []string{"Title", "Description", "Start", "End", "Category", "Skipped Color Update"}

// WriteCSV writes the header and one record per row.
func WriteCSV(w io.Writer, rows []colorize.ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for _, r := range rows {
		skipped := "No"
		if r.Skipped {
			skipped = "Yes"
		}
		if err := cw.Write([]string{r.Title, r.Description, r.Start, r.End, string(r.Category), skipped}); err != nil {
			return fmt.Errorf("csv row %s: %w", r.EventID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Bytes renders rows to an in-memory CSV document.
func Bytes(rows []colorize.ResultRow) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes rows to path, or to DefaultFileName inside dir when path is a
// directory. If the target exists, a timestamp is added so nothing is overwritten.
func Save(path string, rows []colorize.ResultRow, now time.Time) (string, error) {
	if path == "" {
		path = "."
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultFileName)
	}
	if _, err := os.Stat(path); err == nil {
		ext := filepath.Ext(path)
		path = fmt.Sprintf("%s-%s%s", path[:len(path)-len(ext)], now.Format("20060102-150405"), ext)
	}

	data, err := Bytes(rows)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("os.WriteFile(%s): %w", path, err)
	}
	return path, nil
}
