package analytics

import (
	"bytes"
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/simpleiot/budgetbot/data"
)

// Table renders the month as fixed width text, one row per category plus a
// total
func (t MonthTable) Table() string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "year_month\tcategory\tvalue\tshare, %\tΔ, %")
	for _, r := range t.Rows {
		delta := ""
		if r.Delta != nil {
			delta = fmt.Sprintf("%+.1f", *r.Delta)
		}
		fmt.Fprintf(w, "%v\t%v\t%v\t%.1f\t%v\n", t.YearMonth, r.Category,
			data.FormatValue(round2(r.Value)), r.Share, delta)
	}
	fmt.Fprintf(w, "Total\t\t%v\t100.0\t\n", data.FormatValue(round2(t.Total)))

	w.Flush()
	return buf.String()
}

// String renders every month of the report
func (r TwoMonthsReport) String() string {
	var buf bytes.Buffer
	for i, m := range r.Months {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(m.Table())
	}
	return buf.String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
