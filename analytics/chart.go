package analytics

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	colorFG    = color.White
	colorBG    = color.Black
	colorLine  = color.RGBA{R: 0x00, G: 0xff, B: 0xff, A: 0xff}
	colorGrid  = color.RGBA{R: 0x4d, G: 0x4d, B: 0x4d, A: 0xff}
	colorBarA  = color.RGBA{R: 0x00, G: 0xbf, B: 0xbf, A: 0xff}
	colorBarB  = color.RGBA{R: 0xff, G: 0x8c, B: 0x00, A: 0xff}
	chartWidth = 10 * vg.Inch
)

func darkPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Color = colorFG
	p.BackgroundColor = colorBG

	for _, a := range []*plot.Axis{&p.X, &p.Y} {
		a.LineStyle.Color = colorFG
		a.Label.TextStyle.Color = colorFG
		a.Tick.Label.Color = colorFG
		a.Tick.LineStyle.Color = colorFG
	}

	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	p.Legend.TextStyle.Color = colorFG
	p.Legend.Top = true

	grid := plotter.NewGrid()
	grid.Vertical.Color = colorGrid
	grid.Horizontal.Color = colorGrid
	grid.Horizontal.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(grid)

	return p
}

func renderPNG(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, fmt.Errorf("Error rendering chart: %w", err)
	}

	var buf bytes.Buffer
	_, err = wt.WriteTo(&buf)
	if err != nil {
		return nil, fmt.Errorf("Error encoding chart: %w", err)
	}

	return buf.Bytes(), nil
}

// MonthlyChart draws monthly totals as a line with markers. Value labels are
// drawn above each point when labels is set.
func MonthlyChart(title, yLabel string, points []Point, labels bool) ([]byte, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no points to chart")
	}

	p := darkPlot(title, "Month", yLabel)

	xys := make(plotter.XYs, len(points))
	names := make([]string, len(points))
	texts := make([]string, len(points))
	for i, pt := range points {
		xys[i].X = float64(i)
		xys[i].Y = pt.Value
		names[i] = pt.Month
		texts[i] = fmt.Sprintf("%.0f", pt.Value)
	}

	line, pts, err := plotter.NewLinePoints(xys)
	if err != nil {
		return nil, fmt.Errorf("Error creating line: %w", err)
	}
	line.Color = colorLine
	line.Width = vg.Points(2.5)
	pts.Shape = draw.CircleGlyph{}
	pts.Color = colorLine
	pts.Radius = vg.Points(4)
	p.Add(line, pts)

	if labels {
		l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: texts})
		if err != nil {
			return nil, fmt.Errorf("Error creating labels: %w", err)
		}
		for i := range l.TextStyle {
			l.TextStyle[i].Color = colorFG
			l.TextStyle[i].XAlign = draw.XCenter
		}
		l.Offset = vg.Point{Y: vg.Points(6)}
		p.Add(l)
	}

	p.NominalX(names...)
	p.Y.Min = 0

	return renderPNG(p, chartWidth, 6*vg.Inch)
}

// TwoMonthsChart draws the categories of both months as grouped bars
func TwoMonthsChart(title string, r TwoMonthsReport) ([]byte, error) {
	if len(r.Months) == 0 {
		return nil, fmt.Errorf("no months to chart")
	}

	catSet := make(map[string]bool)
	for _, m := range r.Months {
		for _, row := range m.Rows {
			catSet[row.Category] = true
		}
	}
	cats := maps.Keys(catSet)
	slices.Sort(cats)

	p := darkPlot(title, "Category", "Amount")

	// oldest month on the left
	barWidth := vg.Points(18)
	colors := []color.Color{colorBarA, colorBarB}
	n := len(r.Months)
	for i := n - 1; i >= 0; i-- {
		m := r.Months[i]
		byCat := make(map[string]float64)
		for _, row := range m.Rows {
			byCat[row.Category] = row.Value
		}

		vals := make(plotter.Values, len(cats))
		for j, c := range cats {
			vals[j] = byCat[c]
		}

		bars, err := plotter.NewBarChart(vals, barWidth)
		if err != nil {
			return nil, fmt.Errorf("Error creating bars: %w", err)
		}
		slot := n - 1 - i
		bars.Color = colors[slot%len(colors)]
		bars.LineStyle.Width = 0
		bars.Offset = barWidth * vg.Length(float64(slot)-float64(n-1)/2)
		p.Add(bars)
		p.Legend.Add(m.YearMonth, bars)
	}

	p.NominalX(cats...)

	return renderPNG(p, chartWidth, 6*vg.Inch)
}
