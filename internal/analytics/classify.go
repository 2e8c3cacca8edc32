// Package analytics holds the pure numeric routines behind the dashboard:
// deviation tiers, trailing window statistics and feature correlation.
package analytics

import (
	"errors"
	"fmt"
	"math"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

var (
	// ErrZeroActual is returned when the relative deviation is undefined.
	ErrZeroActual = errors.New("analytics: actual is zero")
	// ErrNonFinite is returned for NaN or infinite inputs.
	ErrNonFinite = errors.New("analytics: non-finite input")
)

const (
	LowPct  = 5.0
	HighPct = 15.0
)

// Thresholds splits deviation percentages into tiers. A deviation below Low
// is LOW, below High is MEDIUM, anything else is HIGH.
type Thresholds struct {
	Low  float64
	High float64
}

// DefaultThresholds returns the 5% / 15% boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: LowPct, High: HighPct}
}

func (t Thresholds) Validate() error {
	if math.IsNaN(t.Low) || math.IsNaN(t.High) || t.Low < 0 || t.Low >= t.High {
		return fmt.Errorf("invalid severity thresholds low=%v high=%v", t.Low, t.High)
	}
	return nil
}

// Tier maps a non-negative deviation percentage to a tier.
func (t Thresholds) Tier(pct float64) domain.Tier {
	switch {
	case pct < t.Low:
		return domain.TierLow
	case pct < t.High:
		return domain.TierMedium
	default:
		return domain.TierHigh
	}
}

type Deviation struct {
	Pct  float64
	Tier domain.Tier
}

// Classify uses the default thresholds.
func Classify(actual, predicted float64) (Deviation, error) {
	return DefaultThresholds().Classify(actual, predicted)
}

// Classify computes |actual-predicted| / |actual| * 100 and its tier. The
// returned Pct is always finite; on error the tier is TierUnknown.
func (t Thresholds) Classify(actual, predicted float64) (Deviation, error) {
	if !finite(actual) || !finite(predicted) {
		return Deviation{Tier: domain.TierUnknown}, ErrNonFinite
	}
	if actual == 0 {
		return Deviation{Tier: domain.TierUnknown}, ErrZeroActual
	}
	pct := math.Abs(actual-predicted) / math.Abs(actual) * 100
	if !finite(pct) {
		return Deviation{Tier: domain.TierUnknown}, ErrNonFinite
	}
	return Deviation{Pct: pct, Tier: t.Tier(pct)}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
