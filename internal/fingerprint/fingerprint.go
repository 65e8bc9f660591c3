// Package fingerprint computes deterministic content hashes of tables, so
// that two builds from the same extracts can be compared without reading
// the store back.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
	"strconv"
	"time"

	"warehouse/internal/table"
)

const (
	fieldSep = '\x1f'
	rowSep   = '\x1e'
)

// Table hashes the column names and every cell of t in row order. Missing
// cells are encoded as NUL so that nil and "" differ. The result is a
// lowercase hex SHA-256.
func Table(t *table.Table) string {
	h := sha256.New()
	var buf []byte

	for i, name := range t.ColumnNames() {
		if i > 0 {
			buf = append(buf, fieldSep)
		}
		buf = append(buf, name...)
	}
	buf = append(buf, rowSep)
	flush(h, &buf)

	width := len(t.Columns)
	for _, row := range t.Rows {
		for i := 0; i < width; i++ {
			if i > 0 {
				buf = append(buf, fieldSep)
			}
			var v any
			if i < len(row) {
				v = row[i]
			}
			buf = appendCanonical(buf, v)
		}
		buf = append(buf, rowSep)
		flush(h, &buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Short is the first 12 hex digits, enough to eyeball in a summary.
func Short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func flush(h hash.Hash, buf *[]byte) {
	h.Write(*buf)
	*buf = (*buf)[:0]
}

// appendCanonical appends a stable form of v. Common types avoid fmt.
func appendCanonical(b []byte, v any) []byte {
	switch t := v.(type) {
	case nil:
		return append(b, 0)
	case string:
		return append(b, t...)
	case []byte:
		return append(b, t...)
	case bool:
		return strconv.AppendBool(b, t)
	case int:
		return strconv.AppendInt(b, int64(t), 10)
	case int32:
		return strconv.AppendInt(b, int64(t), 10)
	case int64:
		return strconv.AppendInt(b, t, 10)
	case float64:
		if math.IsNaN(t) {
			return append(b, 0)
		}
		return strconv.AppendFloat(b, t, 'g', -1, 64)
	case float32:
		return strconv.AppendFloat(b, float64(t), 'g', -1, 32)
	case time.Time:
		if !t.IsZero() {
			t = t.UTC()
		}
		return t.AppendFormat(b, time.RFC3339Nano)
	default:
		return fmt.Append(b, t)
	}
}
