package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Key converts a business key value to a canonical string form so that keys
// read from different sources compare equal ("7", int64(7) and 7.0 all become
// "7"). Signed or zero-padded strings such as "007" are codes, not numbers,
// and are kept verbatim.
func Key(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(t)
		if !plainNumber(s) {
			return s
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && isIntegral(f) && !strings.ContainsAny(s, "eExX") {
			return strconv.FormatInt(int64(f), 10)
		}
		return s
	case []byte:
		return Key(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case float64:
		if isIntegral(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// ID normalizes an identifier cell: integral values become int64, anything
// else becomes a trimmed string. Blank values become nil.
func ID(v any) any {
	if v == nil {
		return nil
	}
	if str, isStr := v.(string); isStr && !plainNumber(strings.TrimSpace(str)) {
		if s, ok := AsString(str); ok {
			return s
		}
		return nil
	}
	if n, ok := AsInt(v); ok {
		return n
	}
	s, ok := AsString(v)
	if !ok {
		return nil
	}
	return s
}

// AsString returns the trimmed textual form of v. Blank strings report false.
func AsString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case []byte:
		return AsString(string(t))
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		if math.IsNaN(t) {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case time.Time:
		return t.Format("2006-01-02 15:04:05"), true
	default:
		s := strings.TrimSpace(fmt.Sprint(v))
		return s, s != ""
	}
}

// AsFloat parses numeric cells. Currency symbols and thousands separators
// found in spreadsheet exports are tolerated. NaN and Inf are rejected.
func AsFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case []byte:
		return AsFloat(string(t))
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return 0, false
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// AsInt parses integral cells. Non-integral numbers report false.
func AsInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case bool:
		return 0, false
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
	}
	f, ok := AsFloat(v)
	if !ok || !isIntegral(f) {
		return 0, false
	}
	return int64(f), true
}

// AsBool parses boolean cells: bools, numbers (non-zero is true) and the
// usual textual spellings.
func AsBool(v any) (bool, bool) {
	switch t := v.(type) {
	case nil:
		return false, false
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "t", "yes", "y", "1", "-1":
			return true, true
		case "false", "f", "no", "n", "0":
			return false, true
		}
		return false, false
	}
	f, ok := AsFloat(v)
	if !ok {
		return false, false
	}
	return f != 0, true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04",
	"1/2/2006",
	"2006/01/02",
	"02-Jan-2006",
}

// AsTime parses date cells. Strings are tried against the layouts produced by
// SQL Server, SQLite, ISO exports and Access/Excel exports. Results are UTC.
func AsTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case []byte:
		return AsTime(string(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return ts.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// Blank reports whether a cell carries no value.
func Blank(v any) bool {
	_, ok := AsString(v)
	return !ok
}

// plainNumber reports whether s may be folded to a number: no sign and no
// leading zero except "0" itself or "0.x".
func plainNumber(s string) bool {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return false
	}
	return !(len(s) > 1 && s[0] == '0' && s[1] != '.')
}

func isIntegral(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f) && math.Abs(f) < 1<<53
}
