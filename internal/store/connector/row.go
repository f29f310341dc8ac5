package connector

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeLayouts covers the textual timestamps the three drivers hand back.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// String returns the column as text; nil becomes "".
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the column as an integer; unparsable values become 0.
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case int16:
		return int64(v)
	case int8:
		return int64(v)
	case uint64:
		return int64(v)
	case uint32:
		return int64(v)
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string, []byte:
		n, _ := strconv.ParseInt(strings.TrimSpace(r.String(col)), 10, 64)
		return n
	default:
		return 0
	}
}

// Float64 returns the column as a float; unparsable values become 0.
func (r Row) Float64(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case string, []byte:
		f, _ := strconv.ParseFloat(strings.TrimSpace(r.String(col)), 64)
		return f
	default:
		return float64(r.Int64(col))
	}
}

// Bool returns the column as a boolean (integers are true when non-zero).
func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case string, []byte:
		b, err := strconv.ParseBool(strings.TrimSpace(r.String(col)))
		if err != nil {
			return r.Int64(col) != 0
		}
		return b
	default:
		return r.Int64(col) != 0
	}
}

// Time returns the column as a UTC timestamp; unparsable values become zero.
func (r Row) Time(col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v.UTC()
	case string, []byte:
		s := strings.TrimSpace(r.String(col))
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	case int64:
		return time.Unix(v, 0).UTC()
	}
	return time.Time{}
}
