package reconcile

import (
	"strings"
	"time"
)

const (
	FieldCreated      = "Created"
	FieldLastModified = "Last Modified"
)

// displayDateLayout is how date fields are rendered in output rows.
const displayDateLayout = "2006-01-02 15:04"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
	time.RFC1123Z,
	time.RFC1123,
}

// IsDateField reports whether a field is informational date metadata.
func IsDateField(fieldName string) bool {
	return fieldName == FieldCreated || fieldName == FieldLastModified
}

// ParseDate parses the date formats seen across provider payloads.
func ParseDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders a date value, falling back to its string form.
func FormatDate(v any) string {
	if t, ok := ParseDate(v); ok {
		return t.UTC().Format(displayDateLayout)
	}
	return strings.TrimSpace(Stringify(v))
}
