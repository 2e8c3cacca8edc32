package server

import (
	"sort"
	"strconv"

	"github.com/samber/lo"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/charts"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/service"
)

const bannerSuffix = " Run the model pipeline and restart the backend for live data."

// tierStyle is the palette of one severity card.
type tierStyle struct {
	Label      string
	Border     string
	Background string
	Text       string
	Muted      string
	Badge      string
}

var tierStyles = map[domain.Tier]tierStyle{
	domain.TierHigh:    {Label: "HIGH", Border: "#fca5a5", Background: "#fef2f2", Text: "#dc2626", Muted: "#f87171", Badge: "#fee2e2"},
	domain.TierMedium:  {Label: "MEDIUM", Border: "#fdba74", Background: "#fff7ed", Text: "#ea580c", Muted: "#fb923c", Badge: "#ffedd5"},
	domain.TierLow:     {Label: "LOW", Border: "#fde047", Background: "#fefce8", Text: "#ca8a04", Muted: "#facc15", Badge: "#fef9c3"},
	domain.TierUnknown: {Label: "N/A", Border: "#d1d5db", Background: "#f9fafb", Text: "#4b5563", Muted: "#9ca3af", Badge: "#f3f4f6"},
}

func styleFor(t domain.Tier) tierStyle {
	if s, ok := tierStyles[t]; ok {
		return s
	}
	return tierStyles[domain.TierUnknown]
}

type metricRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type anomalyCard struct {
	Timestamp string
	Actual    string
	Predicted string
	Residual  string
	Deviation string
	Style     tierStyle
}

type forecastRow struct {
	DateTime  string
	Actual    string
	Predicted string
	Upper     string
	Lower     string
}

type surfaceView struct {
	Name      string
	Title     string
	Synthetic bool
}

type tile struct {
	Label  string
	Value  string
	Detail string
}

type pageView struct {
	Title           string
	Seq             uint64
	Loading         bool
	Banner          string
	KPIs            []metricRow
	ModelMetrics    []metricRow
	ResidualStats   []metricRow
	Tiles           []tile
	Recommendations []service.Recommendation
	Cards           []anomalyCard
	ForecastRows    []forecastRow
	Surfaces        []surfaceView
	SyntheticKinds  []domain.Kind
	AnomaliesLive   bool
	ForecastLive    bool
}

func rows(m domain.Metrics, names ...domain.MetricName) []metricRow {
	return lo.Map(names, func(n domain.MetricName, _ int) metricRow {
		spec := lo.FindOrElse(domain.MetricSpecs, domain.MetricSpec{Name: n, Label: string(n)},
			func(s domain.MetricSpec) bool { return s.Name == n })
		return metricRow{Label: spec.Label, Value: m.Display(n)}
	})
}

// deviation carries the percent sign only for a computed value.
func deviation(v domain.Sample) string {
	if !v.Valid {
		return domain.Unavailable
	}
	return domain.FormatSample(v, 2) + "%"
}

// buildPage turns the published state into what the template renders.
func buildPage(st *service.State) pageView {
	v := pageView{Title: "PowerSense Dashboard", Loading: st.Loading}
	if st.Error != "" {
		v.Banner = st.Error + bannerSuffix
	}
	snap := st.Snapshot
	if snap == nil {
		return v
	}
	v.Seq = snap.Seq
	v.SyntheticKinds = snap.SyntheticKinds()

	m := snap.Metrics
	v.KPIs = []metricRow{
		{Label: "LSTM MAE", Value: m.Display(domain.MetricLSTMMAE)},
		{Label: "LSTM RMSE", Value: m.Display(domain.MetricLSTMRMSE)},
		{Label: "Anomalies", Value: m.Display(domain.MetricAnomaliesCount)},
		{Label: "Residual Mean", Value: m.DisplayWith(domain.MetricResidualMean, 2)},
	}
	v.ModelMetrics = rows(m, domain.MetricMAE, domain.MetricRMSE, domain.MetricAnomalyThreshold,
		domain.MetricTotalSamples, domain.MetricAnomalyRatePct)
	v.ResidualStats = rows(m, domain.MetricResidualMean, domain.MetricResidualMin, domain.MetricResidualMax,
		domain.MetricResidualMedian, domain.MetricResidualStd)

	sum := service.Summarize(snap)
	v.Tiles = []tile{
		{Label: "Current Load", Value: domain.FormatSample(sum.CurrentLoad, 2) + " kW", Detail: "latest hourly reading"},
		{Label: "Daily Average", Value: domain.FormatSample(sum.DailyAverage, 2) + " kW", Detail: domain.FormatSample(sum.DailyEnergyMWh, 3) + " MWh over 24h"},
		{Label: "No. of Anomalies", Value: strconv.Itoa(sum.AnomalyCount), Detail: strconv.Itoa(sum.BySeverity[domain.TierHigh.String()]) + " high severity"},
	}
	v.Recommendations = sum.Recommendations

	if l := snap.AnomalyList; l != nil {
		v.AnomaliesLive = l.Origin() == domain.OriginLive
		records := append([]domain.AnomalyRecord(nil), l.Records...)
		sort.SliceStable(records, func(i, j int) bool { return records[i].Severity > records[j].Severity })
		v.Cards = lo.Map(records, func(r domain.AnomalyRecord, _ int) anomalyCard {
			return anomalyCard{
				Timestamp: r.Timestamp,
				Actual:    domain.FormatSample(r.Actual, 2),
				Predicted: domain.FormatSample(r.Predicted, 2),
				Residual:  domain.FormatSample(r.Residual, 2),
				Deviation: deviation(r.DeviationPct),
				Style:     styleFor(r.Severity),
			}
		})
	}

	if t := snap.ForecastTable; t != nil {
		v.ForecastLive = t.Origin() == domain.OriginLive
		v.ForecastRows = lo.Map(t.Rows, func(r domain.ForecastRow, _ int) forecastRow {
			return forecastRow{
				DateTime:  r.DateTime,
				Actual:    domain.FormatSample(r.Actual, 2),
				Predicted: domain.FormatSample(r.Predicted, 2),
				Upper:     domain.FormatSample(r.UpperBound, 2),
				Lower:     domain.FormatSample(r.LowerBound, 2),
			}
		})
	}

	v.Surfaces = lo.Map(charts.Surfaces, func(s charts.Surface, _ int) surfaceView {
		d := charts.DatasetFor(snap, s)
		return surfaceView{
			Name:      string(s),
			Title:     s.Title(),
			Synthetic: d != nil && d.Origin() == domain.OriginSynthetic && !s.Static(),
		}
	})
	return v
}
