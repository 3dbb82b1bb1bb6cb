// internal/store/migrate.go
package store

import (
	"strconv"

	"github.com/law-makers/tally/internal/extract"
	"github.com/law-makers/tally/pkg/models"
)

// migrate upgrades records persisted under an older schema version.
// Version 0 stored price text only; value and currency are derived from it.
func migrate(records []models.Record, from int) []models.Record {
	if from >= SchemaVersion {
		return records
	}
	for i := range records {
		r := &records[i]
		if r.PriceText == nil {
			continue
		}
		if r.PriceValue == nil {
			r.PriceValue = extract.ParsePrice(*r.PriceText)
		}
		if r.Currency == nil {
			r.Currency = extract.InferCurrency(*r.PriceText)
		}
	}
	return records
}

// dedupe drops later records that repeat a key and builds the key index
func dedupe(records []models.Record) ([]models.Record, map[string]int) {
	index := make(map[string]int, len(records))
	out := records[:0]
	for _, r := range records {
		if r.Key == "" {
			continue
		}
		if _, ok := index[r.Key]; ok {
			continue
		}
		index[r.Key] = len(out)
		out = append(out, r)
	}
	return out, index
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
