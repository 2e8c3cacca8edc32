package cloud

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

func testConfig() aws.Config {
	return aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDTEST", "secret", ""),
	}
}

func TestS3PayloadFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/charts/payloads/latest.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"hourly":null}`)
	}))
	defer srv.Close()

	c := NewS3Client(testConfig(), "charts", func(o *s3.Options) {
		o.BaseEndpoint = aws.String(srv.URL)
		o.UsePathStyle = true
	})
	body, err := c.Payload("payloads/latest.json").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"hourly":null}`, string(body))
}

func TestS3PresignGet(t *testing.T) {
	c := NewS3Client(testConfig(), "charts", func(o *s3.Options) {
		o.BaseEndpoint = aws.String("http://localhost:9000")
		o.UsePathStyle = true
	})
	url, err := c.PresignGet(context.Background(), "exports/hourly.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/charts/exports/hourly.png?"), url)
	assert.Contains(t, url, "X-Amz-Expires=3600")
}

func TestLambdaPayloadFetch(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		funcError string
		want      string
		status    int
		msg       string
	}{
		{name: "raw payload", body: `{"metrics":{"mae":1}}`, want: `{"metrics":{"mae":1}}`},
		{name: "proxy response", body: `{"statusCode":200,"body":"{\"metrics\":{}}"}`, want: `{"metrics":{}}`},
		{name: "proxy error", body: `{"statusCode":500,"body":"{\"msg\":\"ML outputs not found\"}"}`, status: 500, msg: "ML outputs not found"},
		{name: "function error", body: `{"errorMessage":"boom"}`, funcError: "Unhandled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/2015-03-31/functions/ml-charts/invocations", r.URL.Path)
				if tt.funcError != "" {
					w.Header().Set("X-Amz-Function-Error", tt.funcError)
				}
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewLambdaClient(testConfig(), func(o *lambda.Options) {
				o.BaseEndpoint = aws.String(srv.URL)
			})
			body, err := c.Payload("ml-charts").Fetch(context.Background())

			switch {
			case tt.funcError != "":
				var te *domain.TransportError
				require.True(t, errors.As(err, &te))
				assert.Contains(t, err.Error(), "Unhandled")
			case tt.status != 0:
				var te *domain.TransportError
				require.True(t, errors.As(err, &te))
				assert.Equal(t, tt.status, te.Status)
				assert.Equal(t, tt.msg, domain.UserMessage(err))
			default:
				require.NoError(t, err)
				assert.JSONEq(t, tt.want, string(body))
			}
		})
	}
}

func TestAnomalyMessage(t *testing.T) {
	records := []domain.AnomalyRecord{{
		Timestamp:    "2024-01-02 03:00:00",
		Residual:     domain.Num(-0.5),
		Actual:       domain.Num(2.5),
		Predicted:    domain.Num(3),
		DeviationPct: domain.Num(20),
		Severity:     domain.TierHigh,
	}}
	assert.Equal(t, "PowerSense Alert: HIGH severity anomaly detected", AnomalySubject(records))
	msg := AnomalyMessage(records)
	assert.Contains(t, msg, "1. 2024-01-02 03:00:00")
	assert.Contains(t, msg, "Actual: 2.50 kW  Predicted: 3.00 kW")
	assert.Contains(t, msg, "Deviation: 20.00%")

	assert.Equal(t, "PowerSense Alert: 2 HIGH severity anomalies detected", AnomalySubject(append(records, records[0])))
}
