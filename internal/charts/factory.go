package charts

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

// instance renders lazily and caches the PNG until it is destroyed.
type instance struct {
	draw      func(w io.Writer) error
	png       []byte
	destroyed bool
}

func (i *instance) Render(w io.Writer) error {
	if i.destroyed {
		return ErrDestroyed
	}
	if i.png == nil {
		var buf bytes.Buffer
		if err := i.draw(&buf); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		i.png = buf.Bytes()
	}
	_, err := w.Write(i.png)
	return err
}

func (i *instance) Destroy() {
	i.destroyed = true
	i.png = nil
	i.draw = nil
}

// ChartFactory builds go-chart rendering contexts keyed by dataset variant.
type ChartFactory struct {
	Theme Theme
}

func NewChartFactory() *ChartFactory {
	return &ChartFactory{Theme: DarkTheme()}
}

func (f *ChartFactory) Create(s Surface, d domain.Dataset) (Instance, error) {
	draw, err := f.drawer(s, d)
	if err != nil {
		return nil, err
	}
	return &instance{draw: draw}, nil
}

func (f *ChartFactory) drawer(s Surface, d domain.Dataset) (func(io.Writer) error, error) {
	t := f.Theme
	title := s.Title()
	switch v := d.(type) {
	case *domain.TimeSeries:
		return t.lineChart(title, v.Labels, []line{{name: "Consumption (kW)", values: v.Data, color: colorBlue}}), nil
	case *domain.ForecastSeries:
		lines := []line{
			{name: "Actual", values: v.Actual, color: colorBlue},
			{name: "Predicted", values: v.Predicted, color: colorGreen},
		}
		if v.HasBounds() {
			lines = append(lines,
				line{name: "Upper Bound", values: v.UpperBound, color: colorAmber, dashed: true},
				line{name: "Lower Bound", values: v.LowerBound, color: colorAmber, dashed: true},
			)
		}
		return t.lineChart(title, v.Labels, lines), nil
	case *domain.ComponentSeries:
		return t.lineChart(title, v.Labels, []line{
			{name: "Trend", values: v.Trend, color: colorBlue},
			{name: "Weekly", values: v.Weekly, color: colorGreen},
			{name: "Yearly", values: v.Yearly, color: colorAmber},
		}), nil
	case *domain.AnomalySeries:
		return t.lineChart(title, v.Labels, []line{
			{name: "Actual", values: v.Actual, color: colorBlue},
			{name: "Anomaly", values: v.AnomalyPoints, color: colorRed, dots: true},
		}), nil
	case *domain.RollingSeries:
		return t.lineChart(title, v.Labels, []line{
			{name: "Actual", values: v.Actual, color: colorBlue},
			{name: fmt.Sprintf("Rolling Mean (%dh)", v.Window), values: v.RollingMean, color: colorGreen},
			{name: fmt.Sprintf("Rolling Std (%dh)", v.Window), values: v.RollingStd, color: colorPurple},
		}), nil
	case *domain.Histogram:
		return t.barChart(title, v.Labels, v.Frequency, nil), nil
	case *domain.LoadProfile:
		return t.barChart(title, v.Labels, v.Power, nil), nil
	case *domain.GroupedBar:
		return t.barChart(title, v.Labels, v.Power, []drawing.Color{colorBlue, colorPurple}), nil
	case *domain.Scatter:
		return t.scatterChart(title, v), nil
	case *domain.Breakdown:
		return t.pieChart(title, v), nil
	case *domain.CorrelationMatrix:
		return t.heatmap(title, v), nil
	case nil:
		return nil, ErrNoDataset
	default:
		return nil, fmt.Errorf("no renderer for %s dataset %T", d.Variant(), d)
	}
}

type line struct {
	name   string
	values []domain.Sample
	color  drawing.Color
	dashed bool
	dots   bool
}

// yRange spans every valid value with a small margin. A flat or empty input
// still yields a non-zero range.
func yRange(series ...[]float64) *chart.ContinuousRange {
	low, high := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			low = math.Min(low, v)
			high = math.Max(high, v)
		}
	}
	if math.IsInf(low, 1) {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	pad := (high - low) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(high)*0.05, 1)
	}
	return &chart.ContinuousRange{Min: low - pad, Max: high + pad}
}

// labelTicks picks at most max evenly spaced category labels.
func labelTicks(labels []string, max int) []chart.Tick {
	n := len(labels)
	if n == 0 {
		return nil
	}
	step := 1
	if n > max {
		step = int(math.Ceil(float64(n) / float64(max)))
	}
	var ticks []chart.Tick
	for i := 0; i < n; i += step {
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: labels[i]})
	}
	return ticks
}
