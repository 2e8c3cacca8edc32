// Package charts owns the rendering contexts behind every chart surface on
// the dashboard. A Controller keeps at most one live instance per surface
// and replaces it wholesale when the source dataset changes.
package charts

import (
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/fallback"
)

// Surface identifies one drawing target on the page.
type Surface string

const (
	SurfaceHourly               Surface = "hourly"
	SurfaceProphetForecast      Surface = "prophet-forecast"
	SurfaceProphetComponents    Surface = "prophet-components"
	SurfaceDeviceBreakdown      Surface = "device-breakdown"
	SurfaceLSTM                 Surface = "lstm"
	SurfaceAnomalyTimeline      Surface = "anomaly-timeline"
	SurfaceResidualDistribution Surface = "residual-distribution"
	SurfacePowerVsTemp          Surface = "power-vs-temp"
	SurfaceRolling24h           Surface = "rolling-24h"
	SurfaceHourlyLoadProfile    Surface = "hourly-load-profile"
	SurfaceWeekdayWeekend       Surface = "weekday-weekend"
	SurfaceCorrelationMatrix    Surface = "correlation-matrix"
)

// Surfaces lists every surface in page order.
var Surfaces = []Surface{
	SurfaceHourly,
	SurfaceProphetForecast,
	SurfaceProphetComponents,
	SurfaceDeviceBreakdown,
	SurfaceLSTM,
	SurfaceAnomalyTimeline,
	SurfaceResidualDistribution,
	SurfacePowerVsTemp,
	SurfaceRolling24h,
	SurfaceHourlyLoadProfile,
	SurfaceWeekdayWeekend,
	SurfaceCorrelationMatrix,
}

var surfaceKinds = map[Surface]domain.Kind{
	SurfaceHourly:               domain.KindHourly,
	SurfaceProphetForecast:      domain.KindProphetForecast,
	SurfaceProphetComponents:    domain.KindProphetComponents,
	SurfaceLSTM:                 domain.KindLSTM,
	SurfaceAnomalyTimeline:      domain.KindAnomaly,
	SurfaceResidualDistribution: domain.KindResidualDistribution,
	SurfacePowerVsTemp:          domain.KindPowerVsTemp,
	SurfaceRolling24h:           domain.KindRolling24h,
	SurfaceHourlyLoadProfile:    domain.KindHourlyLoadProfile,
	SurfaceWeekdayWeekend:       domain.KindWeekdayWeekend,
	SurfaceCorrelationMatrix:    domain.KindCorrelationMatrix,
}

var titles = map[Surface]string{
	SurfaceHourly:               "Hourly Power Consumption (Zone 1)",
	SurfaceProphetForecast:      "Prophet Forecast: Actual vs Predicted",
	SurfaceProphetComponents:    "Prophet Components",
	SurfaceDeviceBreakdown:      "Device Consumption Breakdown",
	SurfaceLSTM:                 "LSTM: Actual vs Predicted",
	SurfaceAnomalyTimeline:      "Anomaly Timeline",
	SurfaceResidualDistribution: "Residual Error Distribution",
	SurfacePowerVsTemp:          "Power vs Temperature",
	SurfaceRolling24h:           "24-Hour Rolling Statistics",
	SurfaceHourlyLoadProfile:    "Hourly Load Profile",
	SurfaceWeekdayWeekend:       "Weekday vs Weekend",
	SurfaceCorrelationMatrix:    "Feature Correlations",
}

// ParseSurface validates a surface name taken from a URL.
func ParseSurface(s string) (Surface, bool) {
	for _, v := range Surfaces {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// Title is the heading shown above the surface.
func (s Surface) Title() string { return titles[s] }

// Kind returns the payload kind a surface draws. Static surfaces have none.
func (s Surface) Kind() (domain.Kind, bool) {
	k, ok := surfaceKinds[s]
	return k, ok
}

// Static reports whether the surface shows fixed data that never changes
// between refreshes.
func (s Surface) Static() bool { return s == SurfaceDeviceBreakdown }

var deviceBreakdown = fallback.DeviceBreakdown()

// DatasetFor picks the dataset a surface renders from snap.
func DatasetFor(snap *domain.Snapshot, s Surface) domain.Dataset {
	if s.Static() {
		return deviceBreakdown
	}
	k, ok := s.Kind()
	if !ok || snap == nil {
		return nil
	}
	return snap.Dataset(k)
}
