package normalize

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

// Reason says why a kind was replaced by synthetic data.
type Reason string

const (
	ReasonMissing        Reason = "missing"
	ReasonMalformed      Reason = "malformed"
	ReasonLengthMismatch Reason = "length_mismatch"
	ReasonNotSquare      Reason = "not_square"
	ReasonAsymmetric     Reason = "asymmetric"
)

type reasonError struct {
	reason Reason
	err    error
}

func (e *reasonError) Error() string { return fmt.Sprintf("%s: %v", e.reason, e.err) }
func (e *reasonError) Unwrap() error { return e.err }

func invalid(reason Reason, format string, args ...any) error {
	return &reasonError{reason: reason, err: fmt.Errorf(format, args...)}
}

func reasonOf(err error) Reason {
	var re *reasonError
	if errors.As(err, &re) {
		return re.reason
	}
	return ReasonMalformed
}

type Fallback struct {
	Kind   domain.Kind
	Reason Reason
	Err    error
}

// Derivation records an optional sub-series computed locally.
type Derivation struct {
	Kind  domain.Kind
	Field string
}

// Report describes how a payload was turned into a snapshot.
type Report struct {
	Live        []domain.Kind
	Fallbacks   []Fallback
	Derived     []Derivation
	Sanitized   bool
	PayloadErr  error
	Unavailable []domain.MetricName
}

func (r *Report) live(k domain.Kind) { r.Live = append(r.Live, k) }

func (r *Report) fallback(k domain.Kind, err error) {
	reason := ReasonMissing
	if err != nil {
		reason = reasonOf(err)
	}
	r.Fallbacks = append(r.Fallbacks, Fallback{Kind: k, Reason: reason, Err: err})
}

func (r *Report) derived(k domain.Kind, field string) {
	r.Derived = append(r.Derived, Derivation{Kind: k, Field: field})
}

// FullyLive reports whether no kind needed a generator.
func (r Report) FullyLive() bool { return len(r.Fallbacks) == 0 }

func (r Report) MarshalZerologObject(e *zerolog.Event) {
	live := zerolog.Arr()
	for _, k := range r.Live {
		live.Str(string(k))
	}
	fb := zerolog.Dict()
	for _, f := range r.Fallbacks {
		fb.Str(string(f.Kind), string(f.Reason))
	}
	derived := zerolog.Arr()
	for _, d := range r.Derived {
		derived.Str(string(d.Kind) + "." + d.Field)
	}
	e.Array("live", live).
		Dict("fallbacks", fb).
		Array("derived", derived).
		Bool("sanitized", r.Sanitized).
		Int("metrics_unavailable", len(r.Unavailable))
	if r.PayloadErr != nil {
		e.AnErr("payload_err", r.PayloadErr)
	}
}
