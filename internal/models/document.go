package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

const (
	fieldID       = "_id"
	fieldUserID   = "userId"
	fieldEmail    = "email"
	fieldDueDate  = "dueDate"
	fieldCategory = "category"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp accepts the due date encodings clients send: RFC 3339 strings,
// zone-less local date-times, plain dates and epoch milliseconds.
func ParseTimestamp(v interface{}) (*time.Time, error) {
	switch value := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &value, nil
	case *time.Time:
		return value, nil
	case string:
		if value == "" {
			return nil, nil
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return &t, nil
			}
		}
		return nil, fmt.Errorf("unrecognized timestamp %q", value)
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, fmt.Errorf("invalid timestamp %v", value)
		}
		t := time.UnixMilli(int64(value)).UTC()
		return &t, nil
	case int64:
		t := time.UnixMilli(value).UTC()
		return &t, nil
	case json.Number:
		ms, err := value.Int64()
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", value, err)
		}
		t := time.UnixMilli(ms).UTC()
		return &t, nil
	default:
		return nil, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func decodeDocument(data []byte) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document must be a JSON object")
	}
	return doc, nil
}

func takeString(doc map[string]interface{}, key string) string {
	v, ok := doc[key]
	if !ok {
		return ""
	}
	delete(doc, key)
	s, _ := v.(string)
	return s
}

func copyFields(fields map[string]interface{}, extra int) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+extra)
	for k, v := range fields {
		out[k] = v
	}
	return out
}
