package main

import (
	"bytes"
	"encoding/json"
	"math/rand"

	"github.com/samber/lo"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/fallback"
)

const nanMarker = "__nan__"

// anomalyRow is the upstream row shape, which names the prediction "pred".
type anomalyRow struct {
	Timestamp string        `json:"timestamp"`
	Residual  domain.Sample `json:"residual"`
	Actual    domain.Sample `json:"actual"`
	Pred      domain.Sample `json:"pred"`
}

// buildPayload assembles an analytics response in which every kind is
// dropped with probability drop. Python-style NaN tokens are emitted for
// some metrics so consumers have to sanitize.
func buildPayload(r *rand.Rand, drop float64) ([]byte, error) {
	out := map[string]any{}
	for _, k := range domain.Kinds {
		if r.Float64() < drop {
			continue
		}
		if k == domain.KindAnomalyList {
			out[string(k)] = lo.Map(fallback.AnomalyList().Records, func(rec domain.AnomalyRecord, _ int) anomalyRow {
				return anomalyRow{Timestamp: rec.Timestamp, Residual: rec.Residual, Actual: rec.Actual, Pred: rec.Predicted}
			})
			continue
		}
		out[string(k)] = fallback.Generate(k)
	}

	metrics := map[string]any{}
	for _, spec := range domain.MetricSpecs {
		switch p := r.Float64(); {
		case p < drop:
		case p < drop+0.05:
			metrics[string(spec.Name)] = nanMarker
		case spec.Integer:
			metrics[string(spec.Name)] = r.Intn(500)
		default:
			metrics[string(spec.Name)] = r.Float64() * 10
		}
	}
	out["metrics"] = metrics

	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return bytes.ReplaceAll(b, []byte(`"`+nanMarker+`"`), []byte("NaN")), nil
}
