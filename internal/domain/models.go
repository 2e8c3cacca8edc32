package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind names one dataset of the upstream charts payload. The string values
// are the payload field names.
type Kind string

const (
	KindHourly               Kind = "hourly"
	KindProphetForecast      Kind = "prophetForecast"
	KindProphetComponents    Kind = "prophetComponents"
	KindAnomaly              Kind = "anomaly"
	KindLSTM                 Kind = "lstm"
	KindResidualDistribution Kind = "residualDistribution"
	KindPowerVsTemp          Kind = "powerVsTemp"
	KindRolling24h           Kind = "rolling24h"
	KindAnomalyList          Kind = "anomalyList"
	KindHourlyLoadProfile    Kind = "hourlyLoadProfile"
	KindWeekdayWeekend       Kind = "weekdayWeekend"
	KindForecastTable        Kind = "forecastTable"
	KindCorrelationMatrix    Kind = "correlationMatrix"
)

// Kinds lists every dataset kind in dashboard order.
var Kinds = []Kind{
	KindHourly,
	KindProphetForecast,
	KindProphetComponents,
	KindAnomaly,
	KindLSTM,
	KindResidualDistribution,
	KindPowerVsTemp,
	KindRolling24h,
	KindAnomalyList,
	KindHourlyLoadProfile,
	KindWeekdayWeekend,
	KindForecastTable,
	KindCorrelationMatrix,
}

// Variant is the rendering capability a dataset needs.
type Variant string

const (
	VariantTimeSeries  Variant = "time-series"
	VariantHistogram   Variant = "histogram"
	VariantScatter     Variant = "scatter"
	VariantGroupedBar  Variant = "grouped-bar"
	VariantMatrix      Variant = "matrix"
	VariantTabular     Variant = "tabular"
	VariantComposition Variant = "composition"
)

// Origin tells whether a dataset came from the live payload or a generator.
type Origin string

const (
	OriginLive      Origin = "live"
	OriginSynthetic Origin = "synthetic"
)

// Dataset is implemented by every per-chart dataset.
type Dataset interface {
	Variant() Variant
	Origin() Origin
}

// Meta is embedded by every dataset.
type Meta struct {
	Source Origin `json:"origin"`
}

func (m Meta) Origin() Origin { return m.Source }

// Live and Synthetic build the embedded Meta.
func Live() Meta      { return Meta{Source: OriginLive} }
func Synthetic() Meta { return Meta{Source: OriginSynthetic} }

type MeasurementPoint struct {
	Timestamp string  `json:"timestamp"`
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
}

// TimeSeries is a single labelled series (hourly consumption).
type TimeSeries struct {
	Meta
	Labels []string `json:"labels"`
	Data   []Sample `json:"data"`
}

func (TimeSeries) Variant() Variant { return VariantTimeSeries }

// ForecastSeries is actual vs predicted with an optional confidence band.
type ForecastSeries struct {
	Meta
	Labels     []string `json:"labels"`
	Actual     []Sample `json:"actual"`
	Predicted  []Sample `json:"predicted"`
	UpperBound []Sample `json:"upperBound,omitempty"`
	LowerBound []Sample `json:"lowerBound,omitempty"`
}

func (ForecastSeries) Variant() Variant { return VariantTimeSeries }

// HasBounds reports whether both bound series are present.
func (f ForecastSeries) HasBounds() bool {
	return f.UpperBound != nil && f.LowerBound != nil
}

type ComponentSeries struct {
	Meta
	Labels []string `json:"labels"`
	Trend  []Sample `json:"trend"`
	Weekly []Sample `json:"weekly"`
	Yearly []Sample `json:"yearly"`
}

func (ComponentSeries) Variant() Variant { return VariantTimeSeries }

type AnomalySeries struct {
	Meta
	Labels        []string `json:"labels"`
	Actual        []Sample `json:"actual"`
	AnomalyPoints []Sample `json:"anomalyPoints"`
}

func (AnomalySeries) Variant() Variant { return VariantTimeSeries }

type Histogram struct {
	Meta
	Labels    []string  `json:"labels"`
	Frequency []float64 `json:"frequency"`
}

func (Histogram) Variant() Variant { return VariantHistogram }

type Scatter struct {
	Meta
	Temperature []float64 `json:"temperature"`
	Power       []float64 `json:"power"`
}

func (Scatter) Variant() Variant { return VariantScatter }

type RollingSeries struct {
	Meta
	Labels      []string `json:"labels"`
	Actual      []Sample `json:"actual"`
	RollingMean []Sample `json:"rollingMean"`
	RollingStd  []Sample `json:"rollingStd"`
	Window      int      `json:"window"`
}

func (RollingSeries) Variant() Variant { return VariantTimeSeries }

// LoadProfile is the 24 bucket hour-of-day profile.
type LoadProfile struct {
	Meta
	Labels []string  `json:"labels"`
	Power  []float64 `json:"power"`
}

func (LoadProfile) Variant() Variant { return VariantHistogram }

type GroupedBar struct {
	Meta
	Labels []string  `json:"labels"`
	Power  []float64 `json:"power"`
}

func (GroupedBar) Variant() Variant { return VariantGroupedBar }

type AnomalyRecord struct {
	Timestamp    string `json:"timestamp"`
	Residual     Sample `json:"residual"`
	Actual       Sample `json:"actual"`
	Predicted    Sample `json:"predicted"`
	DeviationPct Sample `json:"deviationPct"`
	Severity     Tier   `json:"severity"`
}

type AnomalyList struct {
	Meta
	Records []AnomalyRecord `json:"records"`
}

func (AnomalyList) Variant() Variant { return VariantTabular }

// BySeverity returns the records of one tier, order preserved.
func (l AnomalyList) BySeverity(t Tier) []AnomalyRecord {
	var out []AnomalyRecord
	for _, r := range l.Records {
		if r.Severity == t {
			out = append(out, r)
		}
	}
	return out
}

type ForecastRow struct {
	DateTime   string `json:"dateTime"`
	Actual     Sample `json:"actual"`
	Predicted  Sample `json:"predicted"`
	UpperBound Sample `json:"upperBound"`
	LowerBound Sample `json:"lowerBound"`
}

type ForecastTable struct {
	Meta
	Rows []ForecastRow `json:"rows"`
}

func (ForecastTable) Variant() Variant { return VariantTabular }

// CorrelationMatrix is square and symmetric with a unit diagonal. Cells whose
// coefficient could not be computed hold 0 and Valid false.
type CorrelationMatrix struct {
	Meta
	Labels []string    `json:"labels"`
	Matrix [][]float64 `json:"matrix"`
	Valid  [][]bool    `json:"valid"`
}

func (CorrelationMatrix) Variant() Variant { return VariantMatrix }

// Cell returns the value and validity at i, j.
func (m CorrelationMatrix) Cell(i, j int) Cell {
	return Cell{Value: m.Matrix[i][j], Valid: m.Valid[i][j]}
}

type Cell struct {
	Value float64
	Valid bool
}

// Breakdown is a share-of-total composition (device consumption).
type Breakdown struct {
	Meta
	Labels []string  `json:"labels"`
	Shares []float64 `json:"shares"`
}

func (Breakdown) Variant() Variant { return VariantComposition }

// Snapshot is everything one refresh cycle produced. It is never mutated
// after it has been published.
type Snapshot struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	FetchedAt time.Time `json:"fetchedAt"`

	Hourly               *TimeSeries        `json:"hourly"`
	ProphetForecast      *ForecastSeries    `json:"prophetForecast"`
	ProphetComponents    *ComponentSeries   `json:"prophetComponents"`
	Anomaly              *AnomalySeries     `json:"anomaly"`
	LSTM                 *ForecastSeries    `json:"lstm"`
	ResidualDistribution *Histogram         `json:"residualDistribution"`
	PowerVsTemp          *Scatter           `json:"powerVsTemp"`
	Rolling24h           *RollingSeries     `json:"rolling24h"`
	AnomalyList          *AnomalyList       `json:"anomalyList"`
	HourlyLoadProfile    *LoadProfile       `json:"hourlyLoadProfile"`
	WeekdayWeekend       *GroupedBar        `json:"weekdayWeekend"`
	ForecastTable        *ForecastTable     `json:"forecastTable"`
	CorrelationMatrix    *CorrelationMatrix `json:"correlationMatrix"`

	Metrics Metrics `json:"metrics"`
}

// Dataset returns the dataset for kind. It returns nil for an unknown kind
// or a field that has not been populated.
func (s *Snapshot) Dataset(k Kind) Dataset {
	switch k {
	case KindHourly:
		if s.Hourly != nil {
			return s.Hourly
		}
	case KindProphetForecast:
		if s.ProphetForecast != nil {
			return s.ProphetForecast
		}
	case KindProphetComponents:
		if s.ProphetComponents != nil {
			return s.ProphetComponents
		}
	case KindAnomaly:
		if s.Anomaly != nil {
			return s.Anomaly
		}
	case KindLSTM:
		if s.LSTM != nil {
			return s.LSTM
		}
	case KindResidualDistribution:
		if s.ResidualDistribution != nil {
			return s.ResidualDistribution
		}
	case KindPowerVsTemp:
		if s.PowerVsTemp != nil {
			return s.PowerVsTemp
		}
	case KindRolling24h:
		if s.Rolling24h != nil {
			return s.Rolling24h
		}
	case KindAnomalyList:
		if s.AnomalyList != nil {
			return s.AnomalyList
		}
	case KindHourlyLoadProfile:
		if s.HourlyLoadProfile != nil {
			return s.HourlyLoadProfile
		}
	case KindWeekdayWeekend:
		if s.WeekdayWeekend != nil {
			return s.WeekdayWeekend
		}
	case KindForecastTable:
		if s.ForecastTable != nil {
			return s.ForecastTable
		}
	case KindCorrelationMatrix:
		if s.CorrelationMatrix != nil {
			return s.CorrelationMatrix
		}
	}
	return nil
}

// SyntheticKinds lists the kinds that were filled by a generator.
func (s *Snapshot) SyntheticKinds() []Kind {
	var out []Kind
	for _, k := range Kinds {
		if d := s.Dataset(k); d != nil && d.Origin() == OriginSynthetic {
			out = append(out, k)
		}
	}
	return out
}

// Tier is the severity of a deviation.
type Tier int

const (
	TierUnknown Tier = iota
	TierLow
	TierMedium
	TierHigh
)

var tierNames = map[Tier]string{
	TierUnknown: "UNKNOWN",
	TierLow:     "LOW",
	TierMedium:  "MEDIUM",
	TierHigh:    "HIGH",
}

func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseTier accepts tier names case-insensitively.
func ParseTier(s string) (Tier, error) {
	for t, name := range tierNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return TierUnknown, fmt.Errorf("unknown severity tier %q", s)
}
