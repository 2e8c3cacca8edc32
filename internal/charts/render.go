package charts

import (
	"image/color"
	"io"
	"math"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/analytics"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

// points drops gaps; the x value stays the label index.
func points(values []domain.Sample) (xs, ys []float64) {
	for i, v := range values {
		if v.Valid {
			xs = append(xs, float64(i))
			ys = append(ys, v.Value)
		}
	}
	return xs, ys
}

func (t Theme) lineChart(title string, labels []string, lines []line) func(io.Writer) error {
	return func(w io.Writer) error {
		ch := t.base(title)
		var all [][]float64
		for _, l := range lines {
			xs, ys := points(l.values)
			if len(xs) == 0 {
				continue
			}
			style := chart.Style{StrokeColor: l.color, StrokeWidth: 2}
			switch {
			case l.dots:
				style = chart.Style{StrokeWidth: chart.Disabled, DotWidth: 5, DotColor: l.color}
			case l.dashed:
				style.StrokeWidth = 1
				style.StrokeDashArray = []float64{5, 5}
			}
			ch.Series = append(ch.Series, chart.ContinuousSeries{
				Name:    l.name,
				Style:   style,
				XValues: xs,
				YValues: ys,
			})
			all = append(all, ys)
		}
		if len(ch.Series) == 0 {
			return t.placeholder(title, w)
		}
		ch.XAxis.Range = &chart.ContinuousRange{Min: 0, Max: math.Max(float64(len(labels)-1), 1)}
		ch.XAxis.Ticks = labelTicks(labels, 10)
		ch.YAxis.Range = yRange(all...)
		ch.Elements = []chart.Renderable{t.bottomLegend(&ch)}
		return ch.Render(chart.PNG, w)
	}
}

func (t Theme) barChart(title string, labels []string, values []float64, colors []drawing.Color) func(io.Writer) error {
	return func(w io.Writer) error {
		if len(values) == 0 {
			return t.placeholder(title, w)
		}
		bars := make([]chart.Value, len(values))
		high := 0.0
		for i, v := range values {
			col := t.Color(0)
			if len(colors) > 0 {
				col = colors[i%len(colors)]
			}
			label := ""
			if i < len(labels) {
				label = labels[i]
			}
			bars[i] = chart.Value{
				Label: label,
				Value: v,
				Style: chart.Style{FillColor: col.WithAlpha(180), StrokeColor: col, StrokeWidth: 1},
			}
			high = math.Max(high, v)
		}
		if high == 0 {
			high = 1
		}

		width := (t.Width - 120) / (2 * len(bars))
		if width < 4 {
			width = 4
		}
		bc := chart.BarChart{
			Title:      title,
			TitleStyle: t.titleStyle(),
			Width:      t.Width,
			Height:     t.Height,
			Background: t.background(),
			Canvas:     t.canvas(),
			XAxis:      t.axis(),
			YAxis: chart.YAxis{
				Style: t.axis(),
				Range: &chart.ContinuousRange{Min: 0, Max: high * 1.05},
			},
			BarWidth:   width,
			BarSpacing: width,
			Bars:       bars,
		}
		return bc.Render(chart.PNG, w)
	}
}

func (t Theme) scatterChart(title string, s *domain.Scatter) func(io.Writer) error {
	return func(w io.Writer) error {
		if len(s.Temperature) == 0 {
			return t.placeholder(title, w)
		}
		ch := t.base(title)
		ch.Series = []chart.Series{chart.ContinuousSeries{
			Name:    "Power vs Temp",
			Style:   chart.Style{StrokeWidth: chart.Disabled, DotWidth: 4, DotColor: colorBlue.WithAlpha(160)},
			XValues: s.Temperature,
			YValues: s.Power,
		}}
		ch.XAxis.Name = "Temperature"
		ch.XAxis.NameStyle = t.axis()
		ch.XAxis.Range = yRange(s.Temperature)
		ch.YAxis.Range = yRange(s.Power)
		ch.Elements = []chart.Renderable{t.bottomLegend(&ch)}
		return ch.Render(chart.PNG, w)
	}
}

func (t Theme) pieChart(title string, b *domain.Breakdown) func(io.Writer) error {
	return func(w io.Writer) error {
		values := make([]chart.Value, len(b.Shares))
		for i, share := range b.Shares {
			values[i] = chart.Value{
				Label: b.Labels[i] + " " + strconv.FormatFloat(share, 'f', -1, 64) + "%",
				Value: share,
				Style: chart.Style{FillColor: t.Color(i), StrokeColor: t.Background, StrokeWidth: 2},
			}
		}
		pc := chart.PieChart{
			Title:      title,
			TitleStyle: t.titleStyle(),
			Width:      t.Height,
			Height:     t.Height,
			Background: t.background(),
			Canvas:     t.canvas(),
			SliceStyle: chart.Style{FontColor: t.Title, FontSize: 8},
			Values:     values,
		}
		return pc.Render(chart.PNG, w)
	}
}

const (
	heatCellW  = 64
	heatCellH  = 26
	heatLabelW = 120
	heatTop    = 64
)

// heatmap draws the matrix cell by cell with analytics.CellColor. Cells
// without a coefficient show the unavailable marker.
func (t Theme) heatmap(title string, m *domain.CorrelationMatrix) func(io.Writer) error {
	return func(w io.Writer) error {
		n := len(m.Labels)
		if n == 0 || len(m.Matrix) < n {
			return t.placeholder(title, w)
		}
		width := heatLabelW + n*heatCellW + 24
		height := heatTop + n*heatCellH + 24
		r, err := chart.PNG(width, height)
		if err != nil {
			return err
		}
		font, err := chart.GetDefaultFont()
		if err != nil {
			return err
		}
		r.SetFont(font)
		fillRect(r, 0, 0, width, height, t.Background)

		r.SetFontSize(11)
		r.SetFontColor(t.Title)
		r.Text(title, 12, 24)

		r.SetFontSize(7)
		for j, l := range m.Labels {
			r.SetFontColor(t.Legend)
			r.Text(truncate(l, 8), heatLabelW+j*heatCellW+4, heatTop-8)
		}
		for i := 0; i < n; i++ {
			y := heatTop + i*heatCellH
			r.SetFontColor(t.Legend)
			r.Text(truncate(m.Labels[i], 10), 12, y+heatCellH/2+3)
			for j := 0; j < n && j < len(m.Matrix[i]); j++ {
				c := m.Cell(i, j)
				x := heatLabelW + j*heatCellW
				fillRect(r, x+1, y+1, x+heatCellW-1, y+heatCellH-1, toDrawing(analytics.CellColor(c)))

				text := domain.Unavailable
				if c.Valid {
					text = strconv.FormatFloat(c.Value, 'f', 2, 64)
				}
				r.SetFontColor(toDrawing(analytics.CellTextColor(c)))
				tw := r.MeasureText(text).Width()
				r.Text(text, x+(heatCellW-tw)/2, y+heatCellH/2+3)
			}
		}
		return r.Save(w)
	}
}

// placeholder is drawn for a live dataset that has nothing to plot.
func (t Theme) placeholder(title string, w io.Writer) error {
	r, err := chart.PNG(t.Width, t.Height)
	if err != nil {
		return err
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return err
	}
	r.SetFont(font)
	fillRect(r, 0, 0, t.Width, t.Height, t.Background)
	r.SetFontSize(11)
	r.SetFontColor(t.Title)
	r.Text(title, 12, 24)
	r.SetFontSize(9)
	r.SetFontColor(t.Tick)
	msg := "No data"
	tw := r.MeasureText(msg).Width()
	r.Text(msg, (t.Width-tw)/2, t.Height/2)
	return r.Save(w)
}

func fillRect(r chart.Renderer, x0, y0, x1, y1 int, c drawing.Color) {
	r.SetFillColor(c)
	r.SetStrokeColor(c)
	r.SetStrokeWidth(0)
	r.MoveTo(x0, y0)
	r.LineTo(x1, y0)
	r.LineTo(x1, y1)
	r.LineTo(x0, y1)
	r.Close()
	r.Fill()
}

func toDrawing(c color.RGBA) drawing.Color {
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
