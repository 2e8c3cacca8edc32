package analytics

import (
	"math"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

// Pearson returns the correlation of x and y. ok is false when the
// coefficient is undefined: mismatched or short inputs, or a zero-variance
// column. Non-finite pairs are skipped.
func Pearson(x, y []float64) (r float64, ok bool) {
	if len(x) != len(y) {
		return 0, false
	}
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if finite(x[i]) && finite(y[i]) {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	if len(xs) < 2 {
		return 0, false
	}

	mx, my := mean(xs), mean(ys)
	var num, dx2, dy2 float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		num += dx * dy
		dx2 += dx * dx
		dy2 += dy * dy
	}
	denom := math.Sqrt(dx2 * dy2)
	if denom == 0 || !finite(denom) {
		return 0, false
	}
	return clamp(num / denom), true
}

// Correlate builds the pairwise matrix for the named columns. The diagonal is
// set to 1 without computing it. Columns must be given in label order.
func Correlate(labels []string, columns [][]float64) domain.CorrelationMatrix {
	n := len(labels)
	m := domain.CorrelationMatrix{
		Meta:   domain.Live(),
		Labels: append([]string(nil), labels...),
		Matrix: make([][]float64, n),
		Valid:  make([][]bool, n),
	}
	for i := 0; i < n; i++ {
		m.Matrix[i] = make([]float64, n)
		m.Valid[i] = make([]bool, n)
		m.Matrix[i][i] = 1
		m.Valid[i][i] = true
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var r float64
			var ok bool
			if i < len(columns) && j < len(columns) {
				r, ok = Pearson(columns[i], columns[j])
			}
			m.Matrix[i][j], m.Matrix[j][i] = r, r
			m.Valid[i][j], m.Valid[j][i] = ok, ok
		}
	}
	return m
}

// SanitizeMatrix enforces the matrix invariants on externally supplied
// values. A non-finite cell makes both it and its mirror 0 and invalid,
// values are clamped and the diagonal is reset to 1. The input must already
// be square.
func SanitizeMatrix(labels []string, raw [][]domain.Sample) domain.CorrelationMatrix {
	n := len(raw)
	m := domain.CorrelationMatrix{
		Meta:   domain.Live(),
		Labels: append([]string(nil), labels...),
		Matrix: make([][]float64, n),
		Valid:  make([][]bool, n),
	}
	for i := range raw {
		m.Matrix[i] = make([]float64, n)
		m.Valid[i] = make([]bool, n)
		for j, s := range raw[i] {
			if i == j {
				m.Matrix[i][j], m.Valid[i][j] = 1, true
				continue
			}
			if s.Valid && raw[j][i].Valid {
				m.Matrix[i][j], m.Valid[i][j] = clamp(s.Value), true
			}
		}
	}
	return m
}

func clamp(r float64) float64 {
	if r > 1 {
		return 1
	}
	if r < -1 {
		return -1
	}
	return r
}
