package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wally0302/menu/internal/domain"
)

// ExtractedItem is the loosely-typed record shape the model returns.
// Pointers distinguish "missing" from zero so validation can reject
// incomplete records instead of trusting the shape.
type ExtractedItem struct {
	ID             string   `json:"id"`
	OriginalName   string   `json:"originalName"`
	TranslatedName string   `json:"translatedName"`
	EnglishName    string   `json:"englishName"`
	Description    string   `json:"description"`
	Price          *float64 `json:"price"`
	Currency       string   `json:"currency"`
}

// DecodeItems validates the model output at the boundary. Records missing a
// name or price are dropped with a warning; an output with no usable record
// at all is an error.
func DecodeItems(data []byte) ([]ExtractedItem, error) {
	var raw []ExtractedItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("vision: model returned invalid JSON: %w", err)
	}

	items := make([]ExtractedItem, 0, len(raw))
	for i, item := range raw {
		if item.OriginalName == "" || item.Price == nil || *item.Price < 0 {
			logrus.WithFields(logrus.Fields{
				"index": i,
				"name":  item.OriginalName,
			}).Warn("Dropping extracted record with missing required fields")
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, errors.New("vision: no valid dish records in model output")
	}
	return items, nil
}

// ToMenuItems converts validated records into domain items, replacing the
// model-assigned ids with freshly generated ones so ids stay unique across
// multiple scans and pages.
func ToMenuItems(extracted []ExtractedItem) []domain.MenuItem {
	items := make([]domain.MenuItem, 0, len(extracted))
	for _, e := range extracted {
		items = append(items, domain.MenuItem{
			ID:             "item_" + uuid.NewString(),
			OriginalName:   e.OriginalName,
			TranslatedName: e.TranslatedName,
			EnglishName:    e.EnglishName,
			Description:    e.Description,
			Price:          *e.Price,
			Currency:       e.Currency,
		})
	}
	return items
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one despite the response mime type.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
