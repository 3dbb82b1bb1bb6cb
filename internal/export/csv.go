// Package export writes the record collection to CSV and JSON files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/law-makers/tally/pkg/models"
)

// Header is the fixed CSV header row
var Header = []string{"Title", "PriceText", "PriceValue", "Currency", "URL", "ItemId", "FirstSeenAt", "Key"}

// FileName returns <tool>-<YYYY-MM-DD>.<ext>
func FileName(tool string, now time.Time, ext string) string {
	return fmt.Sprintf("%s-%s.%s", tool, now.Format("2006-01-02"), ext)
}

// WriteCSV writes the header and one row per record. Fields containing a comma,
// quote, or newline are quoted with internal quotes doubled.
func WriteCSV(w io.Writer, records []models.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(Row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Row renders one record in header order; null values become empty cells
func Row(r models.Record) []string {
	var firstSeen string
	if !r.FirstSeenAt.IsZero() {
		firstSeen = r.FirstSeenAt.UTC().Format(time.RFC3339Nano)
	}
	var value string
	if r.PriceValue != nil {
		value = strconv.FormatFloat(*r.PriceValue, 'f', -1, 64)
	}
	return []string{
		r.Title,
		deref(r.PriceText),
		value,
		deref(r.Currency),
		r.URL,
		deref(r.ItemID),
		firstSeen,
		r.Key,
	}
}

// ReadCSV parses an export back into records. Header order must match Header.
func ReadCSV(rd io.Reader) ([]models.Record, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = len(Header)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to parse CSV: missing header")
	}
	for i, h := range Header {
		if rows[0][i] != h {
			return nil, fmt.Errorf("unexpected header column %d: %q", i, rows[0][i])
		}
	}

	out := make([]models.Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		r := models.Record{
			Title:     row[0],
			PriceText: ptr(row[1]),
			Currency:  ptr(row[3]),
			URL:       row[4],
			ItemID:    ptr(row[5]),
			Key:       row[7],
		}
		if row[2] != "" {
			v, err := strconv.ParseFloat(row[2], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid price value %q: %w", n+2, row[2], err)
			}
			r.PriceValue = &v
		}
		if row[6] != "" {
			ts, err := time.Parse(time.RFC3339Nano, row[6])
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid timestamp %q: %w", n+2, row[6], err)
			}
			r.FirstSeenAt = ts
		}
		out = append(out, r)
	}
	return out, nil
}

// SaveCSV writes records to dir/<tool>-<date>.csv and returns the path
func SaveCSV(dir, tool string, now time.Time, records []models.Record) (string, error) {
	path := filepath.Join(dir, FileName(tool, now, "csv"))
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := WriteCSV(file, records); err != nil {
		return "", err
	}
	return path, file.Close()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
