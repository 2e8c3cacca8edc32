package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

// labelList accepts strings or numbers; upstream emits both.
type labelList []string

func (l *labelList) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		*l = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]string, len(raw))
	for i, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out[i] = s
			continue
		}
		var n json.Number
		if err := json.Unmarshal(r, &n); err != nil {
			return fmt.Errorf("label %d is neither string nor number", i)
		}
		out[i] = n.String()
	}
	*l = out
	return nil
}

// flexNumber is a nullable number that may also arrive as a numeric string,
// which is how tabular rows are exported upstream.
type flexNumber domain.Sample

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		*f = flexNumber(domain.Null)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			*f = flexNumber(domain.Null)
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = flexNumber(domain.Null)
			return nil
		}
		*f = flexNumber(domain.Num(v))
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexNumber(domain.Num(v))
	return nil
}

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

type wireHourly struct {
	Labels labelList       `json:"labels"`
	Data   []domain.Sample `json:"data"`
}

type wireForecast struct {
	Labels     labelList       `json:"labels"`
	Actual     []domain.Sample `json:"actual"`
	Predicted  []domain.Sample `json:"predicted"`
	UpperBound []domain.Sample `json:"upperBound"`
	LowerBound []domain.Sample `json:"lowerBound"`
}

type wireComponents struct {
	Labels labelList       `json:"labels"`
	Trend  []domain.Sample `json:"trend"`
	Weekly []domain.Sample `json:"weekly"`
	Yearly []domain.Sample `json:"yearly"`
}

type wireAnomaly struct {
	Labels        labelList       `json:"labels"`
	Actual        []domain.Sample `json:"actual"`
	AnomalyPoints []domain.Sample `json:"anomalyPoints"`
}

type wireHistogram struct {
	Labels    labelList       `json:"labels"`
	Frequency []domain.Sample `json:"frequency"`
}

type wireScatter struct {
	Temperature []domain.Sample `json:"temperature"`
	Power       []domain.Sample `json:"power"`
}

type wireRolling struct {
	Labels      labelList       `json:"labels"`
	Actual      []domain.Sample `json:"actual"`
	RollingMean []domain.Sample `json:"rollingMean"`
	RollingStd  []domain.Sample `json:"rollingStd"`
}

type wireAnomalyRow struct {
	Timestamp string        `json:"timestamp"`
	Residual  domain.Sample `json:"residual"`
	Actual    domain.Sample `json:"actual"`
	Pred      domain.Sample `json:"pred"`
}

type wireLoadProfile struct {
	Labels labelList       `json:"labels"`
	Power  []domain.Sample `json:"power"`
}

type wireGrouped struct {
	Labels labelList       `json:"labels"`
	Power  []domain.Sample `json:"power"`
}

type wireForecastRow struct {
	DateTime   *string    `json:"dateTime"`
	DS         *string    `json:"ds"`
	Actual     flexNumber `json:"actual"`
	Predicted  flexNumber `json:"predicted"`
	UpperBound flexNumber `json:"upperBound"`
	LowerBound flexNumber `json:"lowerBound"`
}

type wireMatrix struct {
	Labels labelList         `json:"labels"`
	Matrix [][]domain.Sample `json:"matrix"`
}
