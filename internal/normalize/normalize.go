// Package normalize turns an upstream charts payload into a complete
// snapshot. Each dataset kind is decoded and validated on its own; anything
// absent or malformed is replaced by its synthetic generator.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/analytics"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/fallback"
)

const (
	fieldMetrics  = "metrics"
	fieldFeatures = "features"

	symmetryTolerance = 1e-6
)

type Normalizer struct {
	thresholds analytics.Thresholds
	clock      clock.Clock
}

type Option func(*Normalizer)

func WithThresholds(t analytics.Thresholds) Option {
	return func(n *Normalizer) { n.thresholds = t }
}

func WithClock(c clock.Clock) Option {
	return func(n *Normalizer) { n.clock = c }
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{thresholds: analytics.DefaultThresholds(), clock: clock.New()}
	for _, o := range opts {
		o(n)
	}
	return n
}

var std = New()

// Normalize uses the default thresholds and discards the report.
func Normalize(raw []byte) *domain.Snapshot {
	s, _ := std.Normalize(raw)
	return s
}

// Normalize never fails. A nil or unreadable payload yields a fully
// synthetic snapshot. The returned snapshot has every kind populated.
func (n *Normalizer) Normalize(raw []byte) (*domain.Snapshot, Report) {
	var rep Report
	fields := n.fields(raw, &rep)

	s := &domain.Snapshot{ID: uuid.NewString(), FetchedAt: n.clock.Now()}

	s.Hourly = pick(&rep, fields, domain.KindHourly, decodeHourly, fallback.Hourly)
	s.ProphetForecast = pick(&rep, fields, domain.KindProphetForecast, decodeProphetForecast, fallback.ProphetForecast)
	s.ProphetComponents = pick(&rep, fields, domain.KindProphetComponents, decodeComponents, fallback.ProphetComponents)
	s.Anomaly = pick(&rep, fields, domain.KindAnomaly, decodeAnomaly, fallback.Anomaly)
	s.LSTM = pick(&rep, fields, domain.KindLSTM, decodeLSTM, fallback.LSTM)
	s.ResidualDistribution = pick(&rep, fields, domain.KindResidualDistribution, decodeHistogram, fallback.ResidualDistribution)
	s.PowerVsTemp = pick(&rep, fields, domain.KindPowerVsTemp, decodeScatter, fallback.PowerVsTemp)
	s.Rolling24h = pick(&rep, fields, domain.KindRolling24h, decodeRolling, fallback.Rolling24h)
	s.AnomalyList = pick(&rep, fields, domain.KindAnomalyList, n.decodeAnomalyList, fallback.AnomalyList)
	s.HourlyLoadProfile = pick(&rep, fields, domain.KindHourlyLoadProfile, decodeLoadProfile, fallback.HourlyLoadProfile)
	s.WeekdayWeekend = pick(&rep, fields, domain.KindWeekdayWeekend, decodeGrouped, fallback.WeekdayWeekend)
	s.ForecastTable = pick(&rep, fields, domain.KindForecastTable, decodeForecastTable, fallback.ForecastTable)
	s.CorrelationMatrix = correlation(&rep, fields)

	s.Metrics = metrics(&rep, fields)
	return s, rep
}

func (n *Normalizer) fields(raw []byte, rep *Report) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	raw, rep.Sanitized = Sanitize(raw)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		rep.PayloadErr = fmt.Errorf("decode payload: %w", err)
		return nil
	}
	return fields
}

func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return nil, false
	}
	return raw, true
}

type decodeFunc[T any] func(json.RawMessage, *Report) (*T, error)

func pick[T any](rep *Report, fields map[string]json.RawMessage, k domain.Kind, decode decodeFunc[T], gen func() *T) (out *T) {
	raw, ok := present(fields, string(k))
	if !ok {
		rep.fallback(k, nil)
		return gen()
	}
	defer func() {
		if r := recover(); r != nil {
			rep.fallback(k, invalid(ReasonMalformed, "decode %s: %v", k, r))
			out = gen()
		}
	}()
	v, err := decode(raw, rep)
	if err != nil {
		rep.fallback(k, err)
		return gen()
	}
	rep.live(k)
	return v
}

func requireLabels(l labelList) error {
	if l == nil {
		return invalid(ReasonMalformed, "labels missing")
	}
	return nil
}

// sameLength checks every required series against the label count.
func sameLength(n int, series map[string]int) error {
	for name, l := range series {
		if l != n {
			return invalid(ReasonLengthMismatch, "%s has %d values, want %d", name, l, n)
		}
	}
	return nil
}

func decodeHourly(raw json.RawMessage, _ *Report) (*domain.TimeSeries, error) {
	var w wireHourly
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, invalid(ReasonMalformed, "%v", err)
	}
	if err := requireLabels(w.Labels); err != nil {
		return nil, err
	}
	if w.Data == nil {
		return nil, invalid(ReasonMalformed, "data missing")
	}
	if err := sameLength(len(w.Labels), map[string]int{"data": len(w.Data)}); err != nil {
		return nil, err
	}
	return &domain.TimeSeries{Meta: domain.Live(), Labels: w.Labels, Data: w.Data}, nil
}

func decodeForecast(raw json.RawMessage) (*domain.ForecastSeries, error) {
	var w wireForecast
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, invalid(ReasonMalformed, "%v", err)
	}
	if err := requireLabels(w.Labels); err != nil {
		return nil, err
	}
	if w.Actual == nil || w.Predicted == nil {
		return nil, invalid(ReasonMalformed, "actual and predicted are required")
	}
	n := len(w.Labels)
	if err := sameLength(n, map[string]int{"actual": len(w.Actual), "predicted": len(w.Predicted)}); err != nil {
		return nil, err
	}
	f := &domain.ForecastSeries{Meta: domain.Live(), Labels: w.Labels, Actual: w.Actual, Predicted: w.Predicted}
	if len(w.UpperBound) == n && len(w.LowerBound) == n && w.UpperBound != nil && w.LowerBound != nil {
		f.UpperBound, f.LowerBound = w.UpperBound, w.LowerBound
	}
	return f, nil
}

func decodeProphetForecast(raw json.RawMessage, rep *Report) (*domain.ForecastSeries, error) {
	f, err := decodeForecast(raw)
	if err != nil {
		return nil, err
	}
	if !f.HasBounds() || !boundsHold(f) {
		f.UpperBound, f.LowerBound = fallback.Bounds(f.Predicted)
		rep.derived(domain.KindProphetForecast, "bounds")
	}
	return f, nil
}

// decodeLSTM keeps live bounds when they hold but never invents a band.
func decodeLSTM(raw json.RawMessage, rep *Report) (*domain.ForecastSeries, error) {
	f, err := decodeForecast(raw)
	if err != nil {
		return nil, err
	}
	if f.HasBounds() && !boundsHold(f) {
		f.UpperBound, f.LowerBound = fallback.Bounds(f.Predicted)
		rep.derived(domain.KindLSTM, "bounds")
	}
	return f, nil
}

// boundsHold checks lower <= predicted <= upper wherever all three exist.
func boundsHold(f *domain.ForecastSeries) bool {
	for i, p := range f.Predicted {
		u, l := f.UpperBound[i], f.LowerBound[i]
		if !p.Valid || !u.Valid || !l.Valid {
			continue
		}
		if l.Value > p.Value || p.Value > u.Value {
			return false
		}
	}
	return true
}

func decodeComponents(raw json.RawMessage, rep *Report) (*domain.ComponentSeries, error) {
	var w wireComponents
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, invalid(ReasonMalformed, "%v", err)
	}
	if err := requireLabels(w.Labels); err != nil {
		return nil, err
	}
	if w.Trend == nil {
		return nil, invalid(ReasonMalformed, "trend missing")
	}
	n := len(w.Labels)
	if err := sameLength(n, map[string]int{"trend": len(w.Trend)}); err != nil {
		return nil, err
	}
	c := &domain.ComponentSeries{Meta: domain.Live(), Labels: w.Labels, Trend: w.Trend, Weekly: w.Weekly, Yearly: w.Yearly}
	if w.Weekly == nil || len(w.Weekly) != n {
		c.Weekly = fallback.WeeklyComponent(n)
		rep.derived(domain.KindProphetComponents, "weekly")
	}
	if w.Yearly == nil || len(w.Yearly) != n {
		c.Yearly = fallback.YearlyComponent(n)
		rep.derived(domain.KindProphetComponents, "yearly")
	}
	return c, nil
}

func decodeAnomaly(raw json.RawMessage, _ *Report) (*domain.AnomalySeries, error) {
	var w wireAnomaly
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, invalid(ReasonMalformed, "%v", err)
	}
	if err := requireLabels(w.Labels); err != nil {
		return nil, err
	}
	if w.Actual == nil || w.AnomalyPoints == nil {
		return nil, invalid(ReasonMalformed, "actual and anomalyPoints are required")
	}
	if err := sameLength(len(w.Labels), map[string]int{"actual": len(w.Actual), "anomalyPoints": len(w.AnomalyPoints)}); err != nil {
		return nil, err
	}
	return &domain.AnomalySeries{Meta: domain.Live(), Labels: w.Labels, Actual: w.Actual, AnomalyPoints: w.AnomalyPoints}, nil
}

func decodeHistogram(raw json.RawMessage, _ *Report) (*domain.Histogram, error) {
	var w wireHistogram
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, invalid(ReasonMalformed, "%v", err)
	}
	if err := requireLabels(w.Labels); err != nil {
		return nil, err
	}
	if w.Frequency == nil {
		return nil, invalid(ReasonMalformed, "frequency missing")
	}
	if err := sameLength(len(w.Labels), map[string]int{"frequency": len(w.Frequency)}); err != nil {
		return nil, err
	}
	return &domain.Histogram{Meta: domain.Live(), Labels: w.Labels, Frequency: domain.Values(w.Frequency, 0)}, nil
}

// decodeScatter drops pairs where either coordinate is missing.
func decodeScatter(raw json.RawMessage, _ *Report) (*domain.Scatter, error) {
	var w wireScatter
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, invalid(ReasonMalformed, "%v", err)
	}
	if w.Temperature == nil || w.Power == nil {
		return nil, invalid(ReasonMalformed, "temperature and power are required")
	}
	if err := sameLength(len(w.Temperature), map[string]int{"power": len(w.Power)}); err != nil {
		return nil, err
	}
	s := &domain.Scatter{Meta: domain.Live(), Temperature: []float64{}, Power: []float64{}}
	for i, t := range w.Temperature {
		p := w.Power[i]
		if t.Valid && p.Valid {
			s.Temperature = append(s.Temperature, t.Value)
			s.Power = append(s.Power, p.Value)
		}
	}
	return s, nil
}

func decodeRolling(raw json.RawMessage, rep *Report) (*domain.RollingSeries, error) {
	var w wireRolling
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, invalid(ReasonMalformed, "%v", err)
	}
	if err := requireLabels(w.Labels); err != nil {
		return nil, err
	}
	if w.Actual == nil {
		return nil, invalid(ReasonMalformed, "actual missing")
	}
	n := len(w.Labels)
	if err := sameLength(n, map[string]int{"actual": len(w.Actual)}); err != nil {
		return nil, err
	}
	r := &domain.RollingSeries{
		Meta:        domain.Live(),
		Labels:      w.Labels,
		Actual:      w.Actual,
		RollingMean: w.RollingMean,
		RollingStd:  w.RollingStd,
		Window:      analytics.Window24,
	}
	if w.RollingMean == nil || len(w.RollingMean) != n {
		r.RollingMean = analytics.RollingMean(w.Actual, analytics.Window24)
		rep.derived(domain.KindRolling24h, "rollingMean")
	}
	if w.RollingStd == nil || len(w.RollingStd) != n {
		r.RollingStd = analytics.RollingStd(w.Actual, analytics.Window24)
		rep.derived(domain.KindRolling24h, "rollingStd")
	}
	return r, nil
}

func (n *Normalizer) decodeAnomalyList(raw json.RawMessage, _ *Report) (*domain.AnomalyList, error) {
	var rows []wireAnomalyRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, invalid(ReasonMalformed, "%v", err)
	}
	records := lo.Map(rows, func(r wireAnomalyRow, _ int) domain.AnomalyRecord {
		return n.classify(r)
	})
	SortRecords(records)
	return &domain.AnomalyList{Meta: domain.Live(), Records: records}, nil
}

// classify attaches the deviation tier. When the prediction is missing it
// is recovered from the residual; the sign convention does not matter
// because only the magnitude is used.
func (n *Normalizer) classify(r wireAnomalyRow) domain.AnomalyRecord {
	rec := domain.AnomalyRecord{
		Timestamp: r.Timestamp,
		Residual:  r.Residual,
		Actual:    r.Actual,
		Predicted: r.Pred,
		Severity:  domain.TierUnknown,
	}
	if !r.Actual.Valid {
		return rec
	}
	predicted := r.Pred
	if !predicted.Valid && r.Residual.Valid {
		predicted = domain.Num(r.Actual.Value - r.Residual.Value)
	}
	if !predicted.Valid {
		return rec
	}
	d, err := n.thresholds.Classify(r.Actual.Value, predicted.Value)
	if err != nil {
		return rec
	}
	rec.DeviationPct = domain.Num(d.Pct)
	rec.Severity = d.Tier
	return rec
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SortRecords orders records by timestamp ascending. Timestamps that do not
// parse sort after the ones that do, lexically among themselves.
func SortRecords(records []domain.AnomalyRecord) {
	type key struct {
		t  time.Time
		ok bool
	}
	keys := make(map[string]key, len(records))
	for _, r := range records {
		if _, seen := keys[r.Timestamp]; !seen {
			t, ok := parseTimestamp(r.Timestamp)
			keys[r.Timestamp] = key{t, ok}
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := keys[records[i].Timestamp], keys[records[j].Timestamp]
		switch {
		case a.ok && b.ok:
			return a.t.Before(b.t)
		case a.ok != b.ok:
			return a.ok
		default:
			return records[i].Timestamp < records[j].Timestamp
		}
	})
}

// decodeLoadProfile accepts the bare 24 value array the model pipeline
// writes, or an object with labels and power.
func decodeLoadProfile(raw json.RawMessage, _ *Report) (*domain.LoadProfile, error) {
	var values []domain.Sample
	if err := json.Unmarshal(raw, &values); err == nil {
		return &domain.LoadProfile{
			Meta:   domain.Live(),
			Labels: lo.Times(len(values), strconv.Itoa),
			Power:  domain.Values(values, 0),
		}, nil
	}
	var w wireLoadProfile
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, invalid(ReasonMalformed, "%v", err)
	}
	if err := requireLabels(w.Labels); err != nil {
		return nil, err
	}
	if err := sameLength(len(w.Labels), map[string]int{"power": len(w.Power)}); err != nil {
		return nil, err
	}
	return &domain.LoadProfile{Meta: domain.Live(), Labels: w.Labels, Power: domain.Values(w.Power, 0)}, nil
}

func decodeGrouped(raw json.RawMessage, _ *Report) (*domain.GroupedBar, error) {
	var w wireGrouped
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, invalid(ReasonMalformed, "%v", err)
	}
	if err := requireLabels(w.Labels); err != nil {
		return nil, err
	}
	if err := sameLength(len(w.Labels), map[string]int{"power": len(w.Power)}); err != nil {
		return nil, err
	}
	return &domain.GroupedBar{Meta: domain.Live(), Labels: w.Labels, Power: domain.Values(w.Power, 0)}, nil
}

func decodeForecastTable(raw json.RawMessage, _ *Report) (*domain.ForecastTable, error) {
	var rows []wireForecastRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, invalid(ReasonMalformed, "%v", err)
	}
	out := lo.Map(rows, func(r wireForecastRow, _ int) domain.ForecastRow {
		row := domain.ForecastRow{
			Actual:     domain.Sample(r.Actual),
			Predicted:  domain.Sample(r.Predicted),
			UpperBound: domain.Sample(r.UpperBound),
			LowerBound: domain.Sample(r.LowerBound),
		}
		switch {
		case r.DateTime != nil:
			row.DateTime = *r.DateTime
		case r.DS != nil:
			row.DateTime = *r.DS
		}
		return row
	})
	return &domain.ForecastTable{Meta: domain.Live(), Rows: out}, nil
}

func decodeMatrix(raw json.RawMessage) (*domain.CorrelationMatrix, error) {
	var w wireMatrix
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, invalid(ReasonMalformed, "%v", err)
	}
	if err := requireLabels(w.Labels); err != nil {
		return nil, err
	}
	n := len(w.Labels)
	if len(w.Matrix) != n {
		return nil, invalid(ReasonNotSquare, "%d rows for %d labels", len(w.Matrix), n)
	}
	for i, row := range w.Matrix {
		if len(row) != n {
			return nil, invalid(ReasonNotSquare, "row %d has %d cells, want %d", i, len(row), n)
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := w.Matrix[i][j], w.Matrix[j][i]
			// a missing cell invalidates its mirror in SanitizeMatrix
			if !a.Valid || !b.Valid {
				continue
			}
			if math.Abs(a.Value-b.Value) > symmetryTolerance {
				return nil, invalid(ReasonAsymmetric, "cell %d,%d differs from %d,%d", i, j, j, i)
			}
		}
	}
	m := analytics.SanitizeMatrix(w.Labels, w.Matrix)
	return &m, nil
}

// correlation prefers a supplied matrix, then computes one from raw feature
// columns, then falls back.
func correlation(rep *Report, fields map[string]json.RawMessage) *domain.CorrelationMatrix {
	k := domain.KindCorrelationMatrix
	var matrixErr error
	if raw, ok := present(fields, string(k)); ok {
		m, err := decodeMatrix(raw)
		if err == nil {
			rep.live(k)
			return m
		}
		matrixErr = err
	}
	if raw, ok := present(fields, fieldFeatures); ok {
		if m, ok := fromFeatures(raw); ok {
			rep.live(k)
			rep.derived(k, fieldFeatures)
			return m
		}
	}
	rep.fallback(k, matrixErr)
	return fallback.CorrelationMatrix()
}

// objectKeys lists the keys of a JSON object in document order, first
// occurrence only.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("not an object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return lo.Uniq(keys), nil
}

func fromFeatures(raw json.RawMessage) (*domain.CorrelationMatrix, bool) {
	var cols map[string][]domain.Sample
	if err := json.Unmarshal(raw, &cols); err != nil || len(cols) < 2 {
		return nil, false
	}
	names, err := objectKeys(raw)
	if err != nil {
		return nil, false
	}
	n := -1
	for _, name := range names {
		if n >= 0 && len(cols[name]) != n {
			return nil, false
		}
		n = len(cols[name])
	}
	if n < 2 {
		return nil, false
	}
	columns := lo.Map(names, func(name string, _ int) []float64 {
		return domain.Values(cols[name], math.NaN())
	})
	m := analytics.Correlate(names, columns)
	return &m, true
}

// metrics reads each known field leniently; anything that is not a number
// stays unavailable.
func metrics(rep *Report, fields map[string]json.RawMessage) domain.Metrics {
	out := domain.Metrics{}
	var obj map[string]json.RawMessage
	if raw, ok := present(fields, fieldMetrics); ok {
		_ = json.Unmarshal(raw, &obj)
	}
	for _, spec := range domain.MetricSpecs {
		var v float64
		raw, ok := obj[string(spec.Name)]
		if ok && !isNull(raw) && json.Unmarshal(raw, &v) == nil {
			if s := domain.Num(v); s.Valid {
				out[spec.Name] = s
				continue
			}
		}
		rep.Unavailable = append(rep.Unavailable, spec.Name)
	}
	return out
}
