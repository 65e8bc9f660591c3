// Package csv reads delimited extracts into a table.Table.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"warehouse/internal/config"
	"warehouse/internal/table"
)

// ErrExtraFields is reported through onErr for records that were kept but
// had more fields than the header; the extra fields are dropped.
var ErrExtraFields = errors.New("csv read: extra fields dropped")

// ReadTable reads a whole CSV extract into memory.
//
// Options:
//   - has_header (default true): first record names the columns. Without a
//     header columns are named col_1..col_n.
//   - comma (default ","), lazy_quotes, trim_space (default true).
//   - header_map: rename headers while reading.
//   - normalize_headers (default false): lower-case headers and replace spaces
//     with underscores when no header_map entry matches.
//   - encoding: utf-8 (default), windows-1252, iso-8859-1, utf-16le, utf-16be.
//
// Empty cells become nil. Records that fail to parse are reported through
// onErr and skipped; short records are padded with nil. A failing underlying
// reader ends the read with an error.
func ReadTable(
	ctx context.Context,
	src io.ReadCloser,
	name string,
	opt config.Options,
	onErr func(line int, err error),
) (*table.Table, error) {
	defer src.Close()

	hasHeader := opt.Bool("has_header", true)
	trim := opt.Bool("trim_space", true)
	hm := opt.StringMap("header_map")
	normalize := opt.Bool("normalize_headers", false)

	enc, err := Decoder(opt.String("encoding", ""))
	if err != nil {
		return nil, err
	}
	var r io.Reader = src
	if enc != nil {
		r = transform.NewReader(src, enc.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = -1

	var line int
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	var out *table.Table
	var first []string

	if hasHeader {
		hdr, err := readRec()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv: %s: empty file", name)
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %s: read header: %w", name, err)
		}
		cols := make([]string, len(hdr))
		for i, h := range hdr {
			h = strings.TrimSpace(h)
			if i == 0 {
				h = strings.TrimPrefix(h, "\uFEFF")
			}
			if mapped, ok := hm[h]; ok {
				h = mapped
			} else if normalize {
				h = strings.ReplaceAll(strings.ToLower(h), " ", "_")
			}
			if h == "" {
				h = fmt.Sprintf("col_%d", i+1)
			}
			cols[i] = h
		}
		out = table.New(name, table.Strings(cols...)...)
	} else {
		rec, err := readRec()
		if errors.Is(err, io.EOF) {
			return table.Empty(name), nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %s: read first record: %w", name, err)
		}
		cols := make([]string, len(rec))
		for i := range rec {
			cols[i] = fmt.Sprintf("col_%d", i+1)
		}
		out = table.New(name, table.Strings(cols...)...)
		first = append([]string(nil), rec...)
	}

	width := len(out.Columns)
	addRecord := func(rec []string) {
		row := make([]any, width)
		for i := 0; i < width && i < len(rec); i++ {
			v := rec[i]
			if trim {
				v = strings.TrimSpace(v)
			}
			if v != "" {
				row[i] = v
			}
		}
		out.Rows = append(out.Rows, row)
	}
	if first != nil {
		addRecord(first)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := readRec()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}
		if err != nil {
			// The underlying reader failed; csv.Reader would return the same
			// error forever.
			return nil, fmt.Errorf("csv: %s: read line %d: %w", name, line, err)
		}
		if len(rec) > width && onErr != nil {
			onErr(line, fmt.Errorf("%w: %d fields, header has %d", ErrExtraFields, len(rec), width))
		}
		addRecord(rec)
	}
}

// Decoder maps an encoding option to a golang.org/x/text decoder. UTF-8 and
// the empty string return nil (no transcoding).
func Decoder(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15, nil
	case "utf-16le", "utf-16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	default:
		return nil, fmt.Errorf("csv: unsupported encoding %q", name)
	}
}
