package analytics

import (
	"math"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

// Window24 is the trailing window used for the rolling charts.
const Window24 = 24

// RollingMean averages the valid samples in the trailing window
// [max(0, i-window+1), i]. Windows with no valid sample yield a gap.
func RollingMean(series []domain.Sample, window int) []domain.Sample {
	out := make([]domain.Sample, len(series))
	for i := range series {
		vals := trailing(series, i, window)
		if len(vals) == 0 {
			continue
		}
		out[i] = domain.Num(mean(vals))
	}
	return out
}

// RollingStd is the sample standard deviation over the same window as
// RollingMean. Fewer than two valid values give 0.
func RollingStd(series []domain.Sample, window int) []domain.Sample {
	out := make([]domain.Sample, len(series))
	for i := range series {
		vals := trailing(series, i, window)
		if len(vals) == 0 {
			continue
		}
		out[i] = domain.Num(stdDev(vals))
	}
	return out
}

func trailing(series []domain.Sample, i, window int) []float64 {
	if window < 1 {
		window = 1
	}
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	vals := make([]float64, 0, i-start+1)
	for _, s := range series[start : i+1] {
		if s.Valid {
			vals = append(vals, s.Value)
		}
	}
	return vals
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sumSquares float64
	for _, v := range values {
		d := v - m
		sumSquares += d * d
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}
