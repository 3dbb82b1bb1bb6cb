package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/law-makers/tally/pkg/models"
)

func sp(s string) *string    { return &s }
func fp(v float64) *float64 { return &v }

func sample() []models.Record {
	seen := time.Date(2026, 4, 9, 17, 5, 0, 123456789, time.UTC)
	return []models.Record{
		{
			Key:         "111|watch, \"gold\"|$25.00",
			Title:       `Watch, "Gold" Edition`,
			PriceText:   sp("US $1,234.56"),
			PriceValue:  fp(1234.56),
			Currency:    sp("USD"),
			URL:         "https://www.ebay.com/itm/111",
			ItemID:      sp("111"),
			FirstSeenAt: seen,
		},
		{
			Key:         "lid-42",
			Title:       "Multi\nline title",
			PriceText:   sp("See cart"),
			FirstSeenAt: time.Date(2026, 4, 9, 17, 6, 0, 0, time.UTC),
		},
	}
}

func TestWriteCSV_HeaderAndEscaping(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample()); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "Title,PriceText,PriceValue,Currency,URL,ItemId,FirstSeenAt,Key\n") {
		t.Errorf("Unexpected header line: %q", strings.SplitN(out, "\n", 2)[0])
	}
	if !strings.Contains(out, `"Watch, ""Gold"" Edition","US $1,234.56",1234.56,USD,`) {
		t.Errorf("Expected quoted and escaped fields, got:\n%s", out)
	}
	if !strings.Contains(out, ",2026-04-09T17:05:00.123456789Z,") {
		t.Errorf("Expected sub-second firstSeenAt to be kept, got:\n%s", out)
	}
	if !strings.Contains(out, "\"Multi\nline title\",See cart,,,,,2026-04-09T17:06:00Z,lid-42\n") {
		t.Errorf("Expected empty cells for null values, got:\n%s", out)
	}
}

func TestCSV_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := sample()
	if err := WriteCSV(&buf, want); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	got, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if strings.Join(Row(got[i]), "\x00") != strings.Join(Row(want[i]), "\x00") {
			t.Errorf("Record %d mismatch:\n got %q\nwant %q", i, Row(got[i]), Row(want[i]))
		}
	}
	for i := range want {
		if !got[i].FirstSeenAt.Equal(want[i].FirstSeenAt) {
			t.Errorf("Record %d: expected firstSeenAt %s, got %s", i, want[i].FirstSeenAt.Format(time.RFC3339Nano), got[i].FirstSeenAt.Format(time.RFC3339Nano))
		}
	}
	if got[1].PriceValue != nil || got[1].Currency != nil {
		t.Errorf("Expected nulls to stay null, got %+v", got[1])
	}
}

func TestReadCSV_RejectsWrongHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("A,B,C,D,E,F,G,H\n"))
	if err == nil {
		t.Fatal("Expected error for unexpected header")
	}
}

func TestFileName(t *testing.T) {
	now := time.Date(2026, 10, 19, 23, 0, 0, 0, time.Local)
	if got := FileName("baytally", now, "csv"); got != "baytally-2026-10-19.csv" {
		t.Errorf("Expected baytally-2026-10-19.csv, got %s", got)
	}
}

func TestSaveFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	path, err := SaveCSV(dir, "hotbids", now, sample())
	if err != nil {
		t.Fatalf("SaveCSV failed: %v", err)
	}
	if filepath.Base(path) != "hotbids-2026-01-02.csv" {
		t.Errorf("Unexpected CSV path %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()
	if recs, err := ReadCSV(f); err != nil || len(recs) != 2 {
		t.Errorf("Expected 2 records back, got %d (%v)", len(recs), err)
	}

	path, err = SaveJSON(dir, "hotbids", now, nil)
	if err != nil {
		t.Fatalf("SaveJSON failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	var recs []models.Record
	if err := json.Unmarshal(data, &recs); err != nil || len(recs) != 0 {
		t.Errorf("Expected empty JSON array, got %s", data)
	}
}
