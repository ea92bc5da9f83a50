package format

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind selects how a field value is rendered
type Kind int

const (
	Integer Kind = iota
	Distance
	Elevation
	Speed
	Duration
	Float
	Text
	QuotedText
	Bool
	List
	Count
	Other
	Nested
)

var kindNames = map[Kind]string{
	Integer:    "integer",
	Distance:   "distance",
	Elevation:  "elevation",
	Speed:      "speed",
	Duration:   "duration",
	Float:      "float",
	Text:       "text",
	QuotedText: "quoted text",
	Bool:       "bool",
	List:       "list",
	Count:      "count",
	Other:      "other",
	Nested:     "nested",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Units selects the unit system for distance, elevation and speed
type Units string

const (
	Imperial Units = "imperial"
	Metric   Units = "metric"
)

// ParseUnits parses a unit system name
func ParseUnits(s string) (Units, error) {
	switch Units(strings.ToLower(strings.TrimSpace(s))) {
	case Imperial, "":
		return Imperial, nil
	case Metric:
		return Metric, nil
	}
	return "", fmt.Errorf("unknown units %q (expected %q or %q)", s, Imperial, Metric)
}

const (
	metersPerMile  = 1609.34
	feetPerMeter   = 3.2808399
	secondsPerHour = 3600.0
)

// NoData is written for a key the record does not carry
const NoData = "<nodata>"

// Field maps a record key to the way its value is rendered. Nested fields
// expand into the columns of Fields.
type Field struct {
	Key    string
	Kind   Kind
	Fields []Field
}

// Formatter renders record values as text columns
type Formatter struct {
	Units Units
}

// NewFormatter creates a Formatter for the given unit system
func NewFormatter(units Units) *Formatter {
	if units == "" {
		units = Imperial
	}
	return &Formatter{Units: units}
}

// Render returns the text for value. A null value renders as an empty
// column; a value of an unexpected type renders as a placeholder naming
// the field.
func (f *Formatter) Render(field Field, value any) string {
	if value == nil {
		return ""
	}

	switch field.Kind {
	case Integer:
		if b, ok := value.(bool); ok {
			if b {
				return "1"
			}
			return "0"
		}
		if i, ok := toInt(value); ok {
			return strconv.FormatInt(i, 10)
		}
	case Distance:
		if v, ok := toFloat(value); ok {
			return formatFloat(f.distance(v))
		}
	case Elevation:
		if v, ok := toFloat(value); ok {
			return formatFloat(f.elevation(v))
		}
	case Speed:
		if v, ok := toFloat(value); ok {
			return formatFloat(f.speed(v))
		}
	case Duration:
		if v, ok := toFloat(value); ok {
			return formatFloat(v / 60)
		}
	case Float:
		if v, ok := toFloat(value); ok {
			return formatFloat(v)
		}
	case Text:
		if s, ok := toText(value); ok {
			return s
		}
	case QuotedText:
		if s, ok := toText(value); ok {
			return strings.Join(strings.Fields(s), " ")
		}
	case Bool:
		if b, ok := value.(bool); ok {
			if b {
				return "True"
			}
			return "False"
		}
	case List:
		if items, ok := value.([]any); ok {
			return renderList(items, field)
		}
	case Count:
		if items, ok := value.([]any); ok {
			return fmt.Sprintf("%s: %d items", field.Key, len(items))
		}
	case Other:
		return "other<" + field.Key + ">"
	}

	return invalid(field)
}

func (f *Formatter) distance(meters float64) float64 {
	if f.Units == Metric {
		return meters / 1000
	}
	return meters / metersPerMile
}

func (f *Formatter) elevation(meters float64) float64 {
	if f.Units == Metric {
		return meters
	}
	return meters * feetPerMeter
}

// speed converts meters per second to mph or km/h
func (f *Formatter) speed(mps float64) float64 {
	return f.distance(mps * secondsPerHour)
}

func renderList(items []any, field Field) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		v, ok := toFloat(item)
		if !ok {
			return invalid(field)
		}
		parts = append(parts, formatFloat(v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func invalid(field Field) string {
	return fmt.Sprintf("<invalid %s: %s>", field.Kind, field.Key)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func toInt(value any) (int64, bool) {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		f, err := v.Float64()
		return int64(f), err == nil
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func toText(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	}
	return "", false
}
