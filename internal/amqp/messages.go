package amqp

import (
	"encoding/json"
	"time"

	"cardspend/internal/core"
)

// CategorySummary is one category line of a completed analysis.
type CategorySummary struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

// AnalysisCompletedMessage announces a finished statement analysis. It
// carries the aggregate only, never individual transactions.
type AnalysisCompletedMessage struct {
	ID         string            `json:"id"`
	Filename   string            `json:"filename"`
	RowCount   int               `json:"row_count"`
	Excluded   int               `json:"excluded"`
	Total      float64           `json:"total"`
	Categories []CategorySummary `json:"categories"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewAnalysisCompletedMessage builds the event for an aggregation. Amounts
// are rounded to cents.
func NewAnalysisCompletedMessage(id, filename string, agg core.Aggregation) *AnalysisCompletedMessage {
	categories := make([]CategorySummary, 0, len(agg.Categories))
	for _, c := range agg.Categories {
		categories = append(categories, CategorySummary{
			Label:  c.Label,
			Amount: core.Round2(c.Amount).InexactFloat64(),
			Count:  c.Count,
		})
	}
	return &AnalysisCompletedMessage{
		ID:         id,
		Filename:   filename,
		RowCount:   agg.RowCount,
		Excluded:   agg.Excluded,
		Total:      agg.RoundedTotal().InexactFloat64(),
		Categories: categories,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AnalysisCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AnalysisCompletedMessageFromJSON decodes a message published by PublishAnalysisCompleted.
func AnalysisCompletedMessageFromJSON(data []byte) (*AnalysisCompletedMessage, error) {
	var msg AnalysisCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
