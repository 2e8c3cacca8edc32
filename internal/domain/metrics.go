package domain

import (
	"github.com/shopspring/decimal"
)

// Unavailable is rendered for a metric the payload did not carry.
const Unavailable = "—"

type MetricName string

const (
	MetricLSTMMAE          MetricName = "lstmMae"
	MetricLSTMRMSE         MetricName = "lstmRmse"
	MetricAnomaliesCount   MetricName = "anomaliesCount"
	MetricResidualMean     MetricName = "residualMean"
	MetricMAE              MetricName = "mae"
	MetricRMSE             MetricName = "rmse"
	MetricAnomalyThreshold MetricName = "anomalyThreshold"
	MetricTotalSamples     MetricName = "totalSamples"
	MetricAnomalyRatePct   MetricName = "anomalyRatePct"
	MetricResidualMin      MetricName = "residualMin"
	MetricResidualMax      MetricName = "residualMax"
	MetricResidualMedian   MetricName = "residualMedian"
	MetricResidualStd      MetricName = "residualStd"
)

// MetricSpec describes how a metric is displayed.
type MetricSpec struct {
	Name     MetricName
	Label    string
	Decimals int32
	Integer  bool
	Percent  bool
}

// MetricSpecs lists every model-quality figure in display order.
var MetricSpecs = []MetricSpec{
	{Name: MetricLSTMMAE, Label: "LSTM MAE", Decimals: 2},
	{Name: MetricLSTMRMSE, Label: "LSTM RMSE", Decimals: 2},
	{Name: MetricAnomaliesCount, Label: "Anomalies", Integer: true},
	{Name: MetricResidualMean, Label: "Mean Residual", Decimals: 4},
	{Name: MetricMAE, Label: "Mean Absolute Error", Decimals: 4},
	{Name: MetricRMSE, Label: "Root Mean Squared Error", Decimals: 4},
	{Name: MetricAnomalyThreshold, Label: "Anomaly Threshold", Decimals: 2},
	{Name: MetricTotalSamples, Label: "Total Samples Analyzed", Integer: true},
	{Name: MetricAnomalyRatePct, Label: "Anomaly Detection Rate", Decimals: 2, Percent: true},
	{Name: MetricResidualMin, Label: "Minimum Residual", Decimals: 4},
	{Name: MetricResidualMax, Label: "Maximum Residual", Decimals: 4},
	{Name: MetricResidualMedian, Label: "Median Residual", Decimals: 4},
	{Name: MetricResidualStd, Label: "Standard Deviation", Decimals: 4},
}

func specFor(name MetricName) MetricSpec {
	for _, s := range MetricSpecs {
		if s.Name == name {
			return s
		}
	}
	return MetricSpec{Name: name, Decimals: 2}
}

// Metrics is the flat model-quality mapping of one refresh. A missing key
// means the figure is unavailable; it is never read as zero.
type Metrics map[MetricName]Sample

func (m Metrics) Get(name MetricName) Sample {
	if m == nil {
		return Null
	}
	return m[name]
}

// Display formats a metric with its configured precision.
func (m Metrics) Display(name MetricName) string {
	return FormatMetric(specFor(name), m.Get(name))
}

// DisplayWith formats a metric with an explicit number of decimals.
func (m Metrics) DisplayWith(name MetricName, decimals int32) string {
	s := specFor(name)
	s.Decimals = decimals
	return FormatMetric(s, m.Get(name))
}

// FormatMetric renders v according to spec, or Unavailable.
func FormatMetric(spec MetricSpec, v Sample) string {
	if !v.Valid {
		return Unavailable
	}
	d := decimal.NewFromFloat(v.Value)
	var out string
	if spec.Integer {
		out = d.Round(0).String()
	} else {
		out = d.StringFixed(spec.Decimals)
	}
	if spec.Percent {
		out += "%"
	}
	return out
}

// FormatSample renders a nullable value with fixed decimals.
func FormatSample(v Sample, decimals int32) string {
	return FormatMetric(MetricSpec{Decimals: decimals}, v)
}
