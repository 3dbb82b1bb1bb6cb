// internal/export/json.go
package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/law-makers/tally/pkg/models"
)

// SaveJSON writes records as an indented JSON array to dir/<tool>-<date>.json
func SaveJSON(dir, tool string, now time.Time, records []models.Record) (string, error) {
	if records == nil {
		records = []models.Record{}
	}
	content, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(tool, now, "json"))
	return path, os.WriteFile(path, content, 0644)
}
