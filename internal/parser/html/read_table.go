// Package html reads an HTML <table> (as produced by Access or Excel "save
// as web page" exports) into a table.Table.
package html

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"warehouse/internal/config"
	"warehouse/internal/table"
)

// ReadTable parses the first element matched by the "selector" option
// (default "table"). Header cells come from <th> elements when present,
// otherwise from the first row. Blank cells become nil.
func ReadTable(ctx context.Context, src io.ReadCloser, name string, opt config.Options) (*table.Table, error) {
	defer src.Close()

	doc, err := goquery.NewDocumentFromReader(src)
	if err != nil {
		return nil, fmt.Errorf("html: %s: parse: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	selector := opt.String("selector", "table")
	tbl := doc.Find(selector).First()
	if tbl.Length() == 0 {
		return nil, fmt.Errorf("html: %s: no element matches %q", name, selector)
	}

	rows := tbl.Find("tr")
	var header []string
	start := 0

	if th := tbl.Find("th"); th.Length() > 0 {
		th.Each(func(_ int, s *goquery.Selection) {
			header = append(header, cellText(s))
		})
		// skip the row holding the <th> cells
		rows.EachWithBreak(func(i int, tr *goquery.Selection) bool {
			if tr.Find("th").Length() > 0 {
				start = i + 1
				return false
			}
			return true
		})
	} else if rows.Length() > 0 {
		rows.First().Find("td").Each(func(_ int, s *goquery.Selection) {
			header = append(header, cellText(s))
		})
		start = 1
	}

	if len(header) == 0 {
		return nil, fmt.Errorf("html: %s: table has no header", name)
	}
	for i, h := range header {
		if h == "" {
			header[i] = fmt.Sprintf("col_%d", i+1)
		}
	}

	out := table.New(name, table.Strings(header...)...)
	rows.Slice(start, rows.Length()).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		row := make([]any, len(header))
		cells.Each(func(i int, td *goquery.Selection) {
			if i >= len(row) {
				return
			}
			if v := cellText(td); v != "" {
				row[i] = v
			}
		})
		out.Rows = append(out.Rows, row)
	})
	return out, nil
}

// cellText collapses whitespace runs (including &nbsp;) to single spaces.
func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
