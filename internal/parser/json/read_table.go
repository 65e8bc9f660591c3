// Package json reads JSON extracts (OData feeds, plain arrays, JSONL) into a
// table.Table.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"warehouse/internal/config"
	"warehouse/internal/table"
)

// ReadTable decodes a JSON extract record by record.
//
// Accepted shapes:
//   - a root array of objects, optionally followed by JSONL objects;
//   - a root envelope object; the array-of-objects field named by the
//     records_field option is read, else the first one found ("value" in
//     OData v4, "d" in v2 verbose feeds is unwrapped the same way);
//   - JSONL, or a single object which becomes one record.
//
// Columns appear in first-seen key order. Nested objects are dropped, arrays
// of strings are joined with array_join_separator (default ","), integral
// numbers become int64 and "/Date(ms)/" strings become UTC times.
// header_map renames keys while reading.
func ReadTable(
	ctx context.Context,
	src io.ReadCloser,
	name string,
	opt config.Options,
	onErr func(line int, err error),
) (*table.Table, error) {
	defer src.Close()

	b := &builder{
		name:    name,
		renames: opt.StringMap("header_map"),
		sep:     opt.String("array_join_separator", ","),
		index:   map[string]int{},
	}
	if b.sep == "" {
		b.sep = ","
	}
	field := strings.TrimSpace(opt.String("records_field", ""))

	dec := json.NewDecoder(src)
	dec.UseNumber()

	tok, err := dec.Token()
	if err == io.EOF {
		return nil, fmt.Errorf("json: %s: empty file", name)
	}
	if err != nil {
		return nil, fmt.Errorf("json: %s: read first token: %w", name, err)
	}

	emit := func(obj map[string]any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.add(obj)
		return nil
	}

	d, ok := tok.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("json: %s: unsupported root token %T (want object or array)", name, tok)
	}
	switch d {
	case '[':
		if err := streamArray(dec, emit, onErr, &b.line); err != nil {
			return nil, fmt.Errorf("json: %s: %w", name, err)
		}
		if err := expectDelim(dec, ']'); err != nil {
			return nil, fmt.Errorf("json: %s: %w", name, err)
		}
	case '{':
		single, err := streamEnvelope(dec, field, emit, onErr, &b.line)
		if err != nil {
			return nil, fmt.Errorf("json: %s: %w", name, err)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, fmt.Errorf("json: %s: %w", name, err)
		}
		if len(single) > 0 {
			if err := emit(single); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("json: %s: unsupported root delimiter %q", name, d)
	}

	// Trailing JSONL objects.
	for {
		var obj map[string]any
		err := dec.Decode(&obj)
		if err == io.EOF {
			break
		}
		if err != nil {
			if onErr != nil {
				onErr(b.line+1, fmt.Errorf("json decode: %w", err))
			}
			// The decoder cannot resync after a syntax error.
			break
		}
		if err := emit(obj); err != nil {
			return nil, err
		}
	}
	return b.table(), nil
}

// builder accumulates records whose key sets may differ.
type builder struct {
	name    string
	renames map[string]string
	sep     string

	cols  []string
	index map[string]int
	rows  [][]any
	line  int
}

func (b *builder) add(obj map[string]any) {
	b.line++
	row := make([]any, len(b.cols))
	for _, k := range sortedKeys(obj) {
		v, keep := cell(obj[k], b.sep)
		if !keep {
			continue
		}
		col := k
		if mapped, ok := b.renames[k]; ok {
			col = mapped
		}
		i, ok := b.index[col]
		if !ok {
			i = len(b.cols)
			b.index[col] = i
			b.cols = append(b.cols, col)
		}
		for len(row) <= i {
			row = append(row, nil)
		}
		row[i] = v
	}
	b.rows = append(b.rows, row)
}

func (b *builder) table() *table.Table {
	out := table.New(b.name, table.Strings(b.cols...)...)
	for _, r := range b.rows {
		for len(r) < len(b.cols) {
			r = append(r, nil)
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}

// sortedKeys returns keys in a stable order. Go maps lose the document order,
// so columns follow the sorted key order of the first record carrying them.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

var msDate = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)

// cell converts a decoded JSON value to a table cell. keep is false for
// values that have no tabular form.
func cell(v any, sep string) (_ any, keep bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		if f, err := t.Float64(); err == nil {
			return f, true
		}
		return t.String(), true
	case string:
		if m := msDate.FindStringSubmatch(t); m != nil {
			ms, err := strconv.ParseInt(m[1], 10, 64)
			if err == nil {
				return time.UnixMilli(ms).UTC(), true
			}
		}
		if strings.TrimSpace(t) == "" {
			return nil, true
		}
		return t, true
	case bool:
		return t, true
	case []any:
		ss := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				return nil, false
			}
			ss = append(ss, s)
		}
		return strings.Join(ss, sep), true
	default:
		return nil, false
	}
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read %q: %w", want, err)
	}
	if tok != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// streamArray decodes the elements of the current array ('[' consumed). null
// elements are skipped; any other non-object element is an error.
func streamArray(dec *json.Decoder, emit func(map[string]any) error, onErr func(int, error), line *int) error {
	for dec.More() {
		var raw any
		if err := dec.Decode(&raw); err != nil {
			if onErr != nil {
				onErr(*line+1, err)
			}
			return fmt.Errorf("decode array element: %w", err)
		}
		if raw == nil {
			continue
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("array element %d is %T, want object", *line+1, raw)
		}
		if err := emit(obj); err != nil {
			return err
		}
	}
	return nil
}

// streamEnvelope walks a root object ('{' consumed). The records array is
// streamed and the remaining fields skipped. Without a records array the
// object itself is returned as a single record.
func streamEnvelope(dec *json.Decoder, field string, emit func(map[string]any) error, onErr func(int, error), line *int) (map[string]any, error) {
	single := map[string]any{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read object key: %w", err)
		}
		key, _ := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read field %q: %w", key, err)
		}
		if field != "" && key != field {
			if err := skipFrom(dec, valTok); err != nil {
				return nil, err
			}
			continue
		}
		switch valTok {
		case json.Delim('['):
			if err := streamArray(dec, emit, onErr, line); err != nil {
				return nil, err
			}
			if err := expectDelim(dec, ']'); err != nil {
				return nil, err
			}
			return nil, skipRest(dec)
		case json.Delim('{'):
			// OData v2 verbose: {"d": {"results": [...]}} or {"d": [...]}.
			if key == "d" || key == field {
				inner, err := streamEnvelope(dec, "", emit, onErr, line)
				if err != nil {
					return nil, err
				}
				if err := expectDelim(dec, '}'); err != nil {
					return nil, err
				}
				return inner, skipRest(dec)
			}
			if err := skipFrom(dec, valTok); err != nil {
				return nil, err
			}
		default:
			single[key] = valTok
		}
	}
	if field != "" {
		return nil, fmt.Errorf("records field %q not found", field)
	}
	return single, nil
}

// skipRest skips the remaining fields of the current object.
func skipRest(dec *json.Decoder) error {
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("skip key: %w", err)
		}
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("skip value: %w", err)
		}
		if err := skipFrom(dec, tok); err != nil {
			return err
		}
	}
	return nil
}

// skipFrom skips the value whose first token is tok.
func skipFrom(dec *json.Decoder, tok any) error {
	d, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	for dec.More() {
		if d == '{' {
			if _, err := dec.Token(); err != nil {
				return fmt.Errorf("skip key: %w", err)
			}
		}
		next, err := dec.Token()
		if err != nil {
			return fmt.Errorf("skip value: %w", err)
		}
		if err := skipFrom(dec, next); err != nil {
			return err
		}
	}
	_, err := dec.Token()
	return err
}
