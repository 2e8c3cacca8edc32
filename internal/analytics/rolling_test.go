package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

func TestRollingWindowOfOne(t *testing.T) {
	series := domain.Samples([]float64{3, -1, 7.5, 0, 12})

	assert.Equal(t, series, RollingMean(series, 1))
	for _, s := range RollingStd(series, 1) {
		require.True(t, s.Valid)
		assert.Equal(t, 0.0, s.Value)
	}
}

func TestRollingTruncatedStart(t *testing.T) {
	series := domain.Samples([]float64{1, 2, 3, 4, 5})

	means := RollingMean(series, 3)
	assert.InDelta(t, 1.0, means[0].Value, 1e-9)
	assert.InDelta(t, 1.5, means[1].Value, 1e-9)
	assert.InDelta(t, 2.0, means[2].Value, 1e-9)
	assert.InDelta(t, 4.0, means[4].Value, 1e-9)

	stds := RollingStd(series, 3)
	assert.Equal(t, 0.0, stds[0].Value)
	assert.InDelta(t, math.Sqrt(0.5), stds[1].Value, 1e-9)
	assert.InDelta(t, 1.0, stds[4].Value, 1e-9)
}

func TestRollingNeverLooksAhead(t *testing.T) {
	a := domain.Samples([]float64{1, 2, 3, 4})
	b := domain.Samples([]float64{1, 2, 3, 400})

	ma, mb := RollingMean(a, Window24), RollingMean(b, Window24)
	assert.Equal(t, ma[:3], mb[:3])
}

func TestRollingSkipsGaps(t *testing.T) {
	series := []domain.Sample{domain.Null, domain.Num(4), domain.Null, domain.Num(8)}

	means := RollingMean(series, 2)
	assert.False(t, means[0].Valid)
	assert.InDelta(t, 4.0, means[1].Value, 1e-9)
	assert.InDelta(t, 4.0, means[2].Value, 1e-9)
	assert.InDelta(t, 8.0, means[3].Value, 1e-9)
}
