// internal/extract/script.go
package extract

import (
	"fmt"
	"strconv"

	"github.com/law-makers/tally/pkg/models"
)

// FromScriptValue converts an exported JavaScript array of item objects into raw
// records. Pages that embed their listing as a script global are read this way.
// Entries without a title or price are skipped like DOM candidates are.
func FromScriptValue(v interface{}, itemID func(string) string) []models.RawRecord {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}

	var out []models.RawRecord
	for _, it := range items {
		obj, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		title := NormalizeText(str(obj, "title", "name"))
		priceText := NormalizeText(str(obj, "priceText", "price"))
		if title == "" || priceText == "" {
			continue
		}
		raw := models.RawRecord{
			Key:        NormalizeText(str(obj, "key")),
			Title:      title,
			PriceText:  priceText,
			PriceValue: ParsePrice(priceText),
			Currency:   InferCurrency(priceText),
			URL:        str(obj, "url", "href"),
			ItemID:     str(obj, "itemId", "id"),
			Serial:     NormalizeText(str(obj, "serial")),
			Variant:    NormalizeText(str(obj, "variant")),
			Status:     NormalizeText(str(obj, "status")),
		}
		if c := str(obj, "currency"); c != "" {
			raw.Currency = &c
		}
		if raw.ItemID == "" && itemID != nil {
			raw.ItemID = itemID(raw.URL)
		}
		out = append(out, raw)
	}
	return out
}

// str returns the first present field as a string
func str(obj map[string]interface{}, names ...string) string {
	for _, n := range names {
		v, ok := obj[n]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			return t
		case int64:
			return strconv.FormatInt(t, 10)
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		default:
			return fmt.Sprintf("%v", t)
		}
	}
	return ""
}
