// Package fallback produces placeholder datasets for kinds the upstream
// payload did not carry. Values are random within a plausible range; only
// their shape is guaranteed.
package fallback

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/analytics"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

// Generator builds one synthetic dataset.
type Generator func() domain.Dataset

var generators = map[domain.Kind]Generator{
	domain.KindHourly:               func() domain.Dataset { return Hourly() },
	domain.KindProphetForecast:      func() domain.Dataset { return ProphetForecast() },
	domain.KindProphetComponents:    func() domain.Dataset { return ProphetComponents() },
	domain.KindAnomaly:              func() domain.Dataset { return Anomaly() },
	domain.KindLSTM:                 func() domain.Dataset { return LSTM() },
	domain.KindResidualDistribution: func() domain.Dataset { return ResidualDistribution() },
	domain.KindPowerVsTemp:          func() domain.Dataset { return PowerVsTemp() },
	domain.KindRolling24h:           func() domain.Dataset { return Rolling24h() },
	domain.KindAnomalyList:          func() domain.Dataset { return AnomalyList() },
	domain.KindHourlyLoadProfile:    func() domain.Dataset { return HourlyLoadProfile() },
	domain.KindWeekdayWeekend:       func() domain.Dataset { return WeekdayWeekend() },
	domain.KindForecastTable:        func() domain.Dataset { return ForecastTable() },
	domain.KindCorrelationMatrix:    func() domain.Dataset { return CorrelationMatrix() },
}

// For returns the generator registered for k.
func For(k domain.Kind) (Generator, bool) {
	g, ok := generators[k]
	return g, ok
}

// Generate runs the generator for k, or returns nil for an unknown kind.
func Generate(k domain.Kind) domain.Dataset {
	g, ok := For(k)
	if !ok {
		return nil
	}
	return g()
}

func uniform(from, to float64) float64 {
	return from + rand.Float64()*(to-from)
}

func numbered(prefix string, n int) []string {
	return lo.Times(n, func(i int) string { return fmt.Sprintf("%s %d", prefix, i+1) })
}

func Hourly() *domain.TimeSeries {
	labels := numbered("Hour", 50)
	return &domain.TimeSeries{
		Meta:   domain.Synthetic(),
		Labels: labels,
		Data:   lo.Times(len(labels), func(int) domain.Sample { return domain.Num(30 + uniform(0, 20)) }),
	}
}

func ProphetForecast() *domain.ForecastSeries {
	labels := numbered("Day", 30)
	actual := lo.Times(len(labels), func(i int) domain.Sample {
		return domain.Num(35 + math.Sin(float64(i)*0.2)*10)
	})
	predicted := Jitter(actual, 3)
	upper, lower := Bounds(predicted)
	return &domain.ForecastSeries{
		Meta:       domain.Synthetic(),
		Labels:     labels,
		Actual:     actual,
		Predicted:  predicted,
		UpperBound: upper,
		LowerBound: lower,
	}
}

func ProphetComponents() *domain.ComponentSeries {
	labels := numbered("Day", 50)
	c := &domain.ComponentSeries{
		Meta:   domain.Synthetic(),
		Labels: labels,
		Trend:  lo.Times(len(labels), func(i int) domain.Sample { return domain.Num(30 + float64(i)*0.1) }),
	}
	c.Weekly = WeeklyComponent(len(labels))
	c.Yearly = YearlyComponent(len(labels))
	return c
}

// WeeklyComponent is a seven sample sine with amplitude 5.
func WeeklyComponent(n int) []domain.Sample {
	return lo.Times(n, func(i int) domain.Sample {
		return domain.Num(math.Sin(float64(i)/7*math.Pi*2) * 5)
	})
}

// YearlyComponent is flat over any window the dashboard shows.
func YearlyComponent(n int) []domain.Sample {
	return lo.Times(n, func(int) domain.Sample { return domain.Num(0) })
}

func Anomaly() *domain.AnomalySeries {
	labels := numbered("Hour", 50)
	s := &domain.AnomalySeries{
		Meta:          domain.Synthetic(),
		Labels:        labels,
		Actual:        make([]domain.Sample, len(labels)),
		AnomalyPoints: make([]domain.Sample, len(labels)),
	}
	for i := range labels {
		v := 40 + math.Sin(float64(i)*0.25)*10 + uniform(0, 2)
		if i%10 == 9 {
			v += 25
			s.AnomalyPoints[i] = domain.Num(v)
		}
		s.Actual[i] = domain.Num(v)
	}
	return s
}

func LSTM() *domain.ForecastSeries {
	labels := lo.Times(50, func(i int) string { return strconv.Itoa(i + 1) })
	actual := lo.Times(len(labels), func(i int) domain.Sample {
		return domain.Num(40 + math.Sin(float64(i)*0.15)*15)
	})
	return &domain.ForecastSeries{
		Meta:      domain.Synthetic(),
		Labels:    labels,
		Actual:    actual,
		Predicted: Jitter(actual, 3),
	}
}

// ResidualDistribution has fifteen bins with exponentially decaying counts.
func ResidualDistribution() *domain.Histogram {
	return &domain.Histogram{
		Meta:      domain.Synthetic(),
		Labels:    lo.Times(15, func(i int) string { return strconv.Itoa(i * 500) }),
		Frequency: lo.Times(15, func(i int) float64 { return math.Floor(5000 * math.Exp(-float64(i)/3)) }),
	}
}

func PowerVsTemp() *domain.Scatter {
	temp := lo.Times(80, func(i int) float64 { return 5 + float64(i)/10 + uniform(0, 2) })
	return &domain.Scatter{
		Meta:        domain.Synthetic(),
		Temperature: temp,
		Power:       lo.Map(temp, func(t float64, _ int) float64 { return 30000 + t*2000 + uniform(-2000, 8000) }),
	}
}

func Rolling24h() *domain.RollingSeries {
	labels := numbered("Day", 100)
	actual := lo.Times(len(labels), func(i int) domain.Sample {
		return domain.Num(70000 + math.Sin(float64(i)*0.1)*15000)
	})
	return &domain.RollingSeries{
		Meta:        domain.Synthetic(),
		Labels:      labels,
		Actual:      actual,
		RollingMean: analytics.RollingMean(actual, analytics.Window24),
		RollingStd:  analytics.RollingStd(actual, analytics.Window24),
		Window:      analytics.Window24,
	}
}

// AnomalyList draws eight readings three hours apart from a synthetic load
// curve and classifies them.
func AnomalyList() *domain.AnomalyList {
	base := time.Now().UTC().Truncate(time.Hour).Add(-24 * time.Hour)
	deviations := []float64{0.02, 0.07, 0.18, 0.04, 0.11, 0.25, 0.09, 0.16}
	records := lo.Times(len(deviations), func(i int) domain.AnomalyRecord {
		actual := 40000 + math.Sin(float64(i)*0.8)*12000 + uniform(-500, 500)
		dev := deviations[i]
		if rand.Intn(2) == 0 {
			dev = -dev
		}
		predicted := actual * (1 + dev)
		rec := domain.AnomalyRecord{
			Timestamp: base.Add(time.Duration(i*3) * time.Hour).Format("2006-01-02 15:04:05"),
			Residual:  domain.Num(actual - predicted),
			Actual:    domain.Num(actual),
			Predicted: domain.Num(predicted),
		}
		if d, err := analytics.Classify(actual, predicted); err == nil {
			rec.DeviationPct = domain.Num(d.Pct)
			rec.Severity = d.Tier
		}
		return rec
	})
	return &domain.AnomalyList{Meta: domain.Synthetic(), Records: records}
}

func HourlyLoadProfile() *domain.LoadProfile {
	return &domain.LoadProfile{
		Meta:   domain.Synthetic(),
		Labels: HourLabels(),
		Power:  lo.Times(24, func(i int) float64 { return 40000 + math.Sin(float64(i-6)*0.3)*15000 }),
	}
}

// HourLabels are "0" through "23".
func HourLabels() []string {
	return lo.Times(24, strconv.Itoa)
}

func WeekdayWeekend() *domain.GroupedBar {
	return &domain.GroupedBar{
		Meta:   domain.Synthetic(),
		Labels: []string{"Weekday", "Weekend"},
		Power:  []float64{85000, 72000},
	}
}

func ForecastTable() *domain.ForecastTable {
	base := time.Now().UTC().Truncate(time.Hour)
	rows := lo.Times(24, func(i int) domain.ForecastRow {
		actual := 45000 + math.Sin(2*math.Pi*float64(i)/24)*8000 + uniform(-1000, 1000)
		predicted := actual + uniform(-1500, 1500)
		return domain.ForecastRow{
			DateTime:   base.Add(time.Duration(i) * time.Hour).Format("2006-01-02 15:04:05"),
			Actual:     domain.Num(actual),
			Predicted:  domain.Num(predicted),
			UpperBound: domain.Num(predicted * 1.05),
			LowerBound: domain.Num(predicted * 0.95),
		}
	})
	return &domain.ForecastTable{Meta: domain.Synthetic(), Rows: rows}
}

// FeatureLabels are the columns of the synthetic correlation matrix.
var FeatureLabels = []string{"Global_active_power", "Voltage", "Global_intensity", "Temperature", "Hour"}

// Features returns synthetic feature columns in FeatureLabels order.
func Features(n int) [][]float64 {
	hour := lo.Times(n, func(i int) float64 { return float64(i % 24) })
	temp := lo.Map(hour, func(h float64, _ int) float64 {
		return 15 + 8*math.Sin(2*math.Pi*(h-9)/24) + uniform(-1, 1)
	})
	power := lo.Map(hour, func(h float64, i int) float64 {
		return 1.2 + 0.8*math.Sin(2*math.Pi*(h-12)/24) + 0.03*temp[i] + uniform(-0.2, 0.2)
	})
	voltage := lo.Map(power, func(p float64, _ int) float64 { return 241 - 1.5*p + uniform(-1, 1) })
	intensity := lo.Map(power, func(p float64, i int) float64 { return p * 1000 / voltage[i] })
	return [][]float64{power, voltage, intensity, temp, hour}
}

func CorrelationMatrix() *domain.CorrelationMatrix {
	m := analytics.Correlate(FeatureLabels, Features(240))
	m.Meta = domain.Synthetic()
	return &m
}

// DeviceBreakdown is the static consumption split by device class.
func DeviceBreakdown() *domain.Breakdown {
	return &domain.Breakdown{
		Meta:   domain.Synthetic(),
		Labels: []string{"HVAC", "Lighting", "Appliances", "Electronics", "Other"},
		Shares: []float64{35, 20, 25, 12, 8},
	}
}

// Jitter offsets every valid sample by up to ±spread. Gaps stay gaps.
func Jitter(series []domain.Sample, spread float64) []domain.Sample {
	return lo.Map(series, func(s domain.Sample, _ int) domain.Sample {
		if !s.Valid {
			return domain.Null
		}
		return domain.Num(s.Value + uniform(-spread, spread))
	})
}

// Bounds derives a ±10% band around predicted.
func Bounds(predicted []domain.Sample) (upper, lower []domain.Sample) {
	upper = make([]domain.Sample, len(predicted))
	lower = make([]domain.Sample, len(predicted))
	for i, p := range predicted {
		if !p.Valid {
			continue
		}
		band := math.Abs(p.Value) * 0.1
		upper[i] = domain.Num(p.Value + band)
		lower[i] = domain.Num(p.Value - band)
	}
	return upper, lower
}
