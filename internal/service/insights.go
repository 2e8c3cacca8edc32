package service

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/ANIKETSHETTY47/energy-grid-analytics-go/aggregator"
	"github.com/ANIKETSHETTY47/energy-grid-analytics-go/converter"
	"github.com/samber/lo"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

const (
	dayHours = 24

	anomalyRateWarnPct = 5.0
	weekendSkew        = 1.10
)

// Summary backs the tiles above the charts.
type Summary struct {
	CurrentLoad     domain.Sample    `json:"currentLoad"`
	DailyAverage    domain.Sample    `json:"dailyAverage"`
	DailyEnergyMWh  domain.Sample    `json:"dailyEnergyMWh"`
	AnomalyCount    int              `json:"anomalyCount"`
	BySeverity      map[string]int   `json:"bySeverity"`
	PeakHour        string           `json:"peakHour,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
}

type Recommendation struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Priority    domain.Tier `json:"priority"`
}

// Summarize derives the summary tiles from a snapshot. Hourly values are
// treated as kW averaged over the hour, so a day's sum is kWh.
func Summarize(s *domain.Snapshot) Summary {
	var out Summary
	if s == nil {
		return out
	}

	if s.Hourly != nil {
		points := lastDay(s.Hourly.Data, s.FetchedAt)
		if len(points) > 0 {
			out.CurrentLoad = domain.Num(points[len(points)-1].Value)
			out.DailyAverage = domain.Num(aggregator.Average(points))
			conv := &converter.EnergyConverter{}
			out.DailyEnergyMWh = domain.Num(conv.KWhToMWh(aggregator.Sum(points)))
		}
	}

	out.BySeverity = map[string]int{}
	if s.AnomalyList != nil {
		for _, t := range []domain.Tier{domain.TierHigh, domain.TierMedium, domain.TierLow} {
			out.BySeverity[t.String()] = len(s.AnomalyList.BySeverity(t))
		}
		out.AnomalyCount = len(s.AnomalyList.Records)
	}
	if n, ok := count(s.Metrics.Get(domain.MetricAnomaliesCount)); ok {
		out.AnomalyCount = n
	}

	if p := s.HourlyLoadProfile; p != nil && len(p.Power) > 0 {
		i := lo.IndexOf(p.Power, lo.Max(p.Power))
		if i < len(p.Labels) {
			out.PeakHour = hourLabel(p.Labels[i])
		}
	}

	out.Recommendations = recommend(s, out)
	return out
}

// count converts an upstream count metric. Negative values are rejected and
// values past math.MaxInt32 are clamped.
func count(c domain.Sample) (int, bool) {
	if !c.Valid || c.Value < 0 {
		return 0, false
	}
	return int(math.Min(math.Floor(c.Value), math.MaxInt32)), true
}

// hourLabel renders a bare hour number as "HH:00".
func hourLabel(l string) string {
	if h, err := strconv.Atoi(l); err == nil && h >= 0 && h < dayHours {
		return fmt.Sprintf("%02d:00", h)
	}
	return l
}

// lastDay converts the trailing day of valid hourly values into points
// ending at end.
func lastDay(data []domain.Sample, end time.Time) []aggregator.Point {
	var points []aggregator.Point
	for i := len(data) - 1; i >= 0 && len(points) < dayHours; i-- {
		if !data[i].Valid {
			continue
		}
		offset := time.Duration(len(data)-1-i) * time.Hour
		points = append(points, aggregator.Point{Value: data[i].Value, Timestamp: end.Add(-offset)})
	}
	sort.Slice(points, func(a, b int) bool { return points[a].Timestamp.Before(points[b].Timestamp) })
	return points
}

func recommend(s *domain.Snapshot, sum Summary) []Recommendation {
	var out []Recommendation

	if n := sum.BySeverity[domain.TierHigh.String()]; n > 0 {
		out = append(out, Recommendation{
			Title:       "Investigate high-severity anomalies",
			Description: fmt.Sprintf("%d readings deviate from the forecast by more than the high threshold.", n),
			Priority:    domain.TierHigh,
		})
	}

	if rate := s.Metrics.Get(domain.MetricAnomalyRatePct); rate.Valid && rate.Value > anomalyRateWarnPct {
		out = append(out, Recommendation{
			Title:       "Review model retraining",
			Description: fmt.Sprintf("Anomaly detection rate is %s, above %.0f%%.", s.Metrics.Display(domain.MetricAnomalyRatePct), anomalyRateWarnPct),
			Priority:    domain.TierMedium,
		})
	}

	if sum.PeakHour != "" {
		out = append(out, Recommendation{
			Title:       "Shift flexible loads",
			Description: fmt.Sprintf("Consumption peaks at %s. Move flexible appliances to off-peak hours.", sum.PeakHour),
			Priority:    domain.TierLow,
		})
	}

	if w := s.WeekdayWeekend; w != nil && len(w.Power) >= 2 && w.Power[0] > 0 && w.Power[1] > w.Power[0]*weekendSkew {
		out = append(out, Recommendation{
			Title:       "Check weekend baseline",
			Description: fmt.Sprintf("Weekend consumption (%.2f kW) exceeds weekday (%.2f kW).", w.Power[1], w.Power[0]),
			Priority:    domain.TierLow,
		})
	}

	if len(s.SyntheticKinds()) == len(domain.Kinds) {
		out = append(out, Recommendation{
			Title:       "Sample data shown",
			Description: "Run the model pipeline and restart the backend for live data.",
			Priority:    domain.TierMedium,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}
