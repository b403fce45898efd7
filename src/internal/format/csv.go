package format

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"uxtrace/src/internal/core"
)

// CSVHeaders is the fixed column order of the flat CSV export. Missing
// fields serialize as empty strings; changing the order breaks every
// existing CSV consumer.
var CSVHeaders = []string{
	"timestamp",
	"event",
	"session_id",
	"route",
	"method",
	"status_code",
	"user_id",
	"ip_address",
	"component",
	"action",
	"browser_id",
	"attempt_id",
	"details",
}

// CSVFormatter flattens records into the fixed column order.
type CSVFormatter struct{}

func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

// Format serializes one record as a CSV line without the trailing
// newline.
func (f *CSVFormatter) Format(rec core.Record) ([]byte, error) {
	row := []string{
		rec.Timestamp,
		rec.EventName,
		rec.SessionID,
		rec.Route,
		detailString(rec.Details, "method"),
		detailNumber(rec.Details, "statusCode"),
		rec.UserID,
		detailString(rec.Details, "ip_address"),
		rec.Component,
		detailString(rec.Details, "action"),
		rec.BrowserID,
		detailString(rec.Details, "attempt_id"),
		detailsJSON(rec.Details),
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(row); err != nil {
		return nil, fmt.Errorf("failed to write CSV row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV row: %w", err)
	}
	return []byte(strings.TrimRight(buf.String(), "\r\n")), nil
}

// Name returns the formatter's type name.
func (f *CSVFormatter) Name() string {
	return "csv"
}

func detailString(details map[string]any, key string) string {
	if details == nil {
		return ""
	}
	switch v := details[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func detailNumber(details map[string]any, key string) string {
	if details == nil {
		return ""
	}
	switch v := details[key].(type) {
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case string:
		return v
	default:
		return ""
	}
}

func detailsJSON(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	out, err := json.Marshal(details)
	if err != nil {
		return ""
	}
	return string(out)
}
