package core

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ParseAnyInt parses an integer from common forms. Returns false when
// unsupported. Used to recover iteration counters that round-trip through a
// task-run's Output map, which may decode a JSON number as float64,
// json.Number, or a plain int depending on the source.
func ParseAnyInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t == float64(int(t)) {
			return int(t), true
		}
		return 0, false
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, false
		}
		if iv, err := strconv.Atoi(t); err == nil {
			return iv, true
		}
		return 0, false
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
		return 0, false
	default:
		return 0, false
	}
}
