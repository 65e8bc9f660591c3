// Package report renders the console summary printed after a build.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"warehouse/internal/diag"
	"warehouse/internal/fingerprint"
	"warehouse/internal/pipeline"
)

// Renderer writes build summaries. Color is applied only when UseColor is
// set; fatih/color additionally honors NO_COLOR and non-terminal outputs.
type Renderer struct {
	UseColor bool
}

// Render writes the headline KPIs, the extracts that were loaded, the tables
// written and any issues, in that order.
func (r Renderer) Render(w io.Writer, res *pipeline.Result) {
	if res == nil {
		return
	}
	fmt.Fprintln(w, r.title(fmt.Sprintf("Warehouse build %s (%s)", res.RunID, res.Duration.Round(1e6))))
	fmt.Fprintln(w)

	r.kpis(w, res.KPIs)
	fmt.Fprintln(w)
	r.loaded(w, res.Loaded)
	fmt.Fprintln(w)
	r.written(w, res.Written)
	if len(res.Issues) > 0 {
		fmt.Fprintln(w)
		r.issues(w, res.Issues)
	}
}

func (r Renderer) kpis(w io.Writer, k pipeline.KPIs) {
	t := newTable(w, []string{"KPI", "Value"})
	t.SetAlignment(tablewriter.ALIGN_LEFT)

	period := "n/a"
	if k.FirstOrder != nil && k.LastOrder != nil {
		period = k.FirstOrder.Format("2006-01-02") + " .. " + k.LastOrder.Format("2006-01-02")
	}
	t.AppendBulk([][]string{
		{"Orders", strconv.Itoa(k.Orders)},
		{"Shipped orders", strconv.Itoa(k.ShippedOrders)},
		{"Success rate", r.rate(k.SuccessRate)},
		{"Revenue", fmt.Sprintf("%.2f", k.Revenue)},
		{"Months", strconv.Itoa(k.Months)},
		{"Categories", strconv.Itoa(k.Categories)},
		{"Customers", strconv.Itoa(k.Customers)},
		{"Employees", strconv.Itoa(k.Employees)},
		{"Products", strconv.Itoa(k.Products)},
		{"Order period", period},
	})
	t.Render()
}

func (r Renderer) loaded(w io.Writer, loaded []pipeline.LoadedTable) {
	t := newTable(w, []string{"Extract", "Kind", "Rows", "Skipped", "Status"})
	for _, l := range loaded {
		status := r.paint(color.FgGreen, "ok")
		if l.Err != "" {
			status = r.paint(color.FgYellow, "missing: "+l.Err)
		}
		t.Append([]string{l.Name, l.Kind, strconv.Itoa(l.Rows), strconv.Itoa(l.Skipped), status})
	}
	t.Render()
}

func (r Renderer) written(w io.Writer, written []pipeline.WrittenTable) {
	t := newTable(w, []string{"Table", "Rows", "Status", "Fingerprint"})
	for _, wt := range written {
		status := r.paint(color.FgGreen, "replaced")
		rows := strconv.FormatInt(wt.Rows, 10)
		if wt.Skipped {
			status, rows = r.paint(color.FgYellow, "empty, not written"), "-"
		}
		t.Append([]string{wt.Name, rows, status, fingerprint.Short(wt.Fingerprint)})
	}
	t.Render()
}

func (r Renderer) issues(w io.Writer, issues []pipeline.Issue) {
	t := newTable(w, []string{"#", "Category", "Table", "Detail"})
	for i, iss := range issues {
		t.Append([]string{strconv.Itoa(i + 1), r.category(iss.Category), iss.Table, iss.Detail})
	}
	t.Render()
}

func (r Renderer) category(c diag.Category) string {
	switch c {
	case diag.MissingSource, diag.MissingKeyColumn:
		return r.paint(color.FgRed, string(c))
	default:
		return r.paint(color.FgYellow, string(c))
	}
}

// rate colors a delivery percentage: green from 90%, yellow from 70%.
func (r Renderer) rate(pct float64) string {
	s := fmt.Sprintf("%.1f%%", pct)
	switch {
	case pct >= 90:
		return r.paint(color.FgGreen, s)
	case pct >= 70:
		return r.paint(color.FgYellow, s)
	default:
		return r.paint(color.FgRed, s)
	}
}

func (r Renderer) title(s string) string {
	if !r.UseColor {
		return s
	}
	return color.New(color.Bold).Sprint(s)
}

func (r Renderer) paint(attr color.Attribute, s string) string {
	if !r.UseColor {
		return s
	}
	return color.New(attr).Sprint(s)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetBorder(false)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(false)
	return t
}
