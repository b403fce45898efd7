package format

import (
	"encoding/json"
	"fmt"

	"uxtrace/src/internal/core"
)

// JSONFormatter produces the structured JSON form of records and the
// batch envelope the collector ingests.
type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format serializes a single record.
func (f *JSONFormatter) Format(rec core.Record) ([]byte, error) {
	out, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return out, nil
}

// FormatBatch wraps records in the {"logs": [...]} ingest envelope.
func (f *JSONFormatter) FormatBatch(records []core.Record) ([]byte, error) {
	out, err := json.Marshal(core.Batch{Logs: records})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}
	return out, nil
}

// Name returns the formatter's type name.
func (f *JSONFormatter) Name() string {
	return "json"
}
