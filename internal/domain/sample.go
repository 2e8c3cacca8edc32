package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Sample is a nullable measurement. Upstream series use null for gaps.
type Sample struct {
	Value float64
	Valid bool
}

// Num returns a valid sample, or an invalid one when v is not finite.
func Num(v float64) Sample {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Sample{}
	}
	return Sample{Value: v, Valid: true}
}

// Null is the missing sample.
var Null = Sample{}

// Or returns the value, or def when the sample is missing.
func (s Sample) Or(def float64) float64 {
	if !s.Valid {
		return def
	}
	return s.Value
}

func (s Sample) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(s.Value, 'f', -1, 64)), nil
}

func (s *Sample) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = Sample{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = Num(v)
	return nil
}

// Samples wraps plain values.
func Samples(vs []float64) []Sample {
	out := make([]Sample, len(vs))
	for i, v := range vs {
		out[i] = Num(v)
	}
	return out
}

// Values unwraps samples, substituting def for gaps.
func Values(ss []Sample, def float64) []float64 {
	out := make([]float64, len(ss))
	for i, s := range ss {
		out[i] = s.Or(def)
	}
	return out
}
