package charts

import (
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Theme is the shared dark styling applied to every chart.
type Theme struct {
	Background drawing.Color
	Grid       drawing.Color
	Tick       drawing.Color
	Legend     drawing.Color
	Title      drawing.Color
	Palette    []drawing.Color
	Width      int
	Height     int
}

var (
	colorBlue   = drawing.ColorFromHex("5dadec")
	colorGreen  = drawing.ColorFromHex("22c55e")
	colorAmber  = drawing.ColorFromHex("f59e0b")
	colorDeep   = drawing.ColorFromHex("16a34a")
	colorPurple = drawing.ColorFromHex("a855f7")
	colorRed    = drawing.ColorFromHex("ef4444")
)

func DarkTheme() Theme {
	return Theme{
		Background: drawing.ColorFromHex("1a1a1f"),
		Grid:       drawing.Color{R: 255, G: 255, B: 255, A: 13},
		Tick:       drawing.ColorFromHex("6a6a70"),
		Legend:     drawing.ColorFromHex("a0a0a0"),
		Title:      drawing.ColorFromHex("e8e8ec"),
		Palette:    []drawing.Color{colorBlue, colorGreen, colorAmber, colorDeep, colorPurple},
		Width:      800,
		Height:     360,
	}
}

// Color cycles through the palette.
func (t Theme) Color(i int) drawing.Color {
	return t.Palette[i%len(t.Palette)]
}

func (t Theme) background() chart.Style {
	return chart.Style{
		FillColor: t.Background,
		Padding:   chart.Box{Top: 36, Left: 16, Right: 24, Bottom: 56},
	}
}

func (t Theme) canvas() chart.Style {
	return chart.Style{FillColor: t.Background}
}

func (t Theme) axis() chart.Style {
	return chart.Style{
		StrokeColor: t.Tick,
		FontColor:   t.Tick,
		FontSize:    8,
	}
}

func (t Theme) grid() chart.Style {
	return chart.Style{StrokeColor: t.Grid, StrokeWidth: 1}
}

func (t Theme) titleStyle() chart.Style {
	return chart.Style{FontColor: t.Title, FontSize: 11}
}

// base is the configuration shared by the time-series family: title, axes,
// grid and a legend along the bottom edge.
func (t Theme) base(title string) chart.Chart {
	return chart.Chart{
		Title:      title,
		TitleStyle: t.titleStyle(),
		Width:      t.Width,
		Height:     t.Height,
		Background: t.background(),
		Canvas:     t.canvas(),
		XAxis: chart.XAxis{
			Style:          t.axis(),
			GridMajorStyle: t.grid(),
		},
		YAxis: chart.YAxis{
			Style:          t.axis(),
			GridMajorStyle: t.grid(),
		},
	}
}

// bottomLegend lays the series names out in a row below the canvas.
func (t Theme) bottomLegend(c *chart.Chart) chart.Renderable {
	return func(r chart.Renderer, canvasBox chart.Box, defaults chart.Style) {
		r.SetFont(defaults.GetFont())
		r.SetFontSize(8)
		r.SetFontColor(t.Legend)

		x := canvasBox.Left
		y := canvasBox.Bottom + 40
		for i, s := range c.Series {
			name := s.GetName()
			if name == "" {
				continue
			}
			col := s.GetStyle().StrokeColor
			if col.IsZero() {
				col = s.GetStyle().DotColor
			}
			if col.IsZero() {
				col = t.Color(i)
			}
			r.SetFillColor(col)
			r.SetStrokeColor(col)
			r.SetStrokeWidth(1)
			r.Circle(4, x+4, y-3)
			r.FillStroke()

			r.SetFontColor(t.Legend)
			r.Text(name, x+12, y)
			x += 12 + r.MeasureText(name).Width() + 18
		}
	}
}
