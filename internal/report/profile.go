package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"

	"warehouse/internal/probe"
)

// RenderProfiles writes one column table per profiled extract followed by a
// key health line.
func (r Renderer) RenderProfiles(w io.Writer, profiles []probe.Profile) {
	for i, p := range profiles {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, r.title(fmt.Sprintf("%s (%d rows)", p.Table, p.Rows)))
		if len(p.Columns) == 0 {
			fmt.Fprintln(w, r.paint(color.FgYellow, "  no columns: extract missing or empty"))
			continue
		}

		t := newTable(w, []string{"Column", "Type", "Filled", "Distinct"})
		for _, c := range p.Columns {
			name := c.Name
			if c.Name == p.Key {
				name += " *"
			}
			t.Append([]string{name, c.Type, fill(c.Filled, p.Rows), strconv.Itoa(c.Distinct)})
		}
		t.Render()
		fmt.Fprintln(w, r.keyHealth(p))
	}
}

func (r Renderer) keyHealth(p probe.Profile) string {
	switch {
	case p.Key == "":
		return "  key: none (rows are concatenated or passed through)"
	case !p.KeyPresent:
		return r.paint(color.FgRed, fmt.Sprintf("  key: %s missing, most distinct column is %q", p.Key, p.Candidate))
	case p.KeyBlank > 0 || p.KeyDuplicates > 0:
		return r.paint(color.FgYellow, fmt.Sprintf("  key: %s has %d blank and %d duplicate values", p.Key, p.KeyBlank, p.KeyDuplicates))
	default:
		return r.paint(color.FgGreen, fmt.Sprintf("  key: %s unique", p.Key))
	}
}

func fill(n, rows int) string {
	if rows == 0 {
		return "0"
	}
	return fmt.Sprintf("%d (%.0f%%)", n, 100*float64(n)/float64(rows))
}
