package reconcile

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultImageFields are compared by item count rather than content.
var DefaultImageFields = []string{"Pictures"}

var longTextMarkers = []string{"description", "content", "details"}

var firstSentenceRegex = regexp.MustCompile(`.*?[.!?](\s|$)`)

// Classifier decides whether two present values for a field are the same.
type Classifier struct {
	imageFields map[string]bool
}

// NewClassifier builds a classifier; with no names it uses DefaultImageFields.
func NewClassifier(imageFields ...string) *Classifier {
	if len(imageFields) == 0 {
		imageFields = DefaultImageFields
	}
	c := &Classifier{imageFields: make(map[string]bool, len(imageFields))}
	for _, f := range imageFields {
		if f = strings.TrimSpace(f); f != "" {
			c.imageFields[f] = true
		}
	}
	return c
}

var defaultClassifier = NewClassifier()

// AreEqual compares with the default image fields.
func AreEqual(fieldName string, a, b any) bool {
	return defaultClassifier.AreEqual(fieldName, a, b)
}

func (c *Classifier) IsImageField(fieldName string) bool {
	return c.imageFields[fieldName]
}

// AreEqual applies the field-aware rules: image collections by count, long
// text by first sentence, everything else by trimmed string form.
func (c *Classifier) AreEqual(fieldName string, a, b any) bool {
	if a == nil || b == nil {
		return false
	}

	if c.IsImageField(fieldName) {
		return itemCount(a) == itemCount(b)
	}

	if isLongTextField(fieldName) {
		sa, okA := a.(string)
		sb, okB := b.(string)
		if okA && okB {
			return FirstSentence(sa) == FirstSentence(sb)
		}
	}

	return strings.TrimSpace(Stringify(a)) == strings.TrimSpace(Stringify(b))
}

func isLongTextField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, marker := range longTextMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func itemCount(v any) int {
	switch t := v.(type) {
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	case []string:
		return len(t)
	}
	return 0
}

// FirstSentence returns text up to and including the first sentence terminator
// that is followed by whitespace or the end of the text, trimmed.
func FirstSentence(text string) string {
	if m := firstSentenceRegex.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return strings.TrimSpace(text)
}

// Stringify renders a payload value the way it is compared and displayed.
// Numbers use their shortest decimal form, lists join their elements with
// commas and objects are rendered as JSON with sorted keys.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, len(t))
		for i, el := range t {
			parts[i] = Stringify(el)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(t, ",")
	case map[string]any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
	return fmt.Sprint(v)
}
