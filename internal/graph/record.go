package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Record is one schema-less Graph entity. Only "id" is relied on; every other field is optional.
type Record struct {
	fields map[string]any
	raw    json.RawMessage
}

// NewRecord builds a record from decoded fields. Used by tests and fakes.
func NewRecord(fields map[string]any) *Record {
	raw, _ := json.Marshal(fields)
	return &Record{fields: fields, raw: raw}
}

func (r *Record) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		r.fields = nil
		r.raw = nil
		return nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("graph record must be a JSON object")
	}
	var fields map[string]any
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return err
	}
	r.fields = fields
	r.raw = append(json.RawMessage(nil), trimmed...)
	return nil
}

func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil || len(r.raw) == 0 {
		return []byte("null"), nil
	}
	return r.raw, nil
}

// ID returns the record id, or "" when absent.
func (r *Record) ID() string {
	return r.String("id")
}

// Has reports whether key is present with a non-null value.
func (r *Record) Has(key string) bool {
	if r == nil {
		return false
	}
	v, ok := r.fields[key]
	return ok && v != nil
}

// String returns the scalar value of key as text, or "" when absent or not a scalar.
func (r *Record) String(key string) string {
	if r == nil {
		return ""
	}
	switch v := r.fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Time parses key as an RFC 3339 timestamp. Graph reports "never" as the zero time,
// which is treated as absent.
func (r *Record) Time(key string) (time.Time, bool) {
	raw := r.String(key)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	if t.Year() <= 1 {
		return time.Time{}, false
	}
	return t, true
}

// TypeName returns the last dotted segment of "@odata.type",
// e.g. "windows10GeneralConfiguration" for "#microsoft.graph.windows10GeneralConfiguration".
func (r *Record) TypeName() string {
	odataType := strings.TrimPrefix(r.String("@odata.type"), "#")
	if odataType == "" {
		return ""
	}
	if idx := strings.LastIndex(odataType, "."); idx >= 0 {
		odataType = odataType[idx+1:]
	}
	return odataType
}

// Fields returns a shallow copy of the decoded fields.
func (r *Record) Fields() map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// RawJSON returns the record exactly as Graph sent it.
func (r *Record) RawJSON() []byte {
	if r == nil {
		return nil
	}
	return r.raw
}

// PrettyJSON returns the record indented for display.
func (r *Record) PrettyJSON() string {
	if r == nil || len(r.raw) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.raw, "", "  "); err != nil {
		return string(r.raw)
	}
	return buf.String()
}
