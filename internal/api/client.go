// Package api fetches the charts payload from the analytics backend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/telemetry"
)

const (
	DefaultURL = "http://localhost:5000/routes/ml/charts"

	DefaultMaxBody = 32 << 20
)

// ErrBodyTooLarge marks a response longer than the configured limit.
var ErrBodyTooLarge = errors.New("response body exceeds limit")

type Client struct {
	url        string
	http       *http.Client
	maxRetries uint64
	retryWait  time.Duration
	maxBody    int64
}

type Options struct {
	Timeout    time.Duration
	MaxRetries uint64
	RetryWait  time.Duration
	// MaxBody caps the response size in bytes. Zero means DefaultMaxBody.
	MaxBody int64
}

func New(url string, opts Options) *Client {
	if url == "" {
		url = DefaultURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryWait == 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = DefaultMaxBody
	}
	return &Client{
		url:        url,
		http:       &http.Client{Timeout: opts.Timeout},
		maxRetries: opts.MaxRetries,
		retryWait:  opts.RetryWait,
		maxBody:    opts.MaxBody,
	}
}

// Fetch returns the raw payload body. Failures are *domain.TransportError.
// Server errors and network failures are retried; 4xx answers are not.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "upstream.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("http.url", c.url))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait
	b.MaxElapsedTime = 0

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		var err error
		body, err = c.get(ctx)
		var te *domain.TransportError
		if errors.As(err, &te) && te.Status >= 400 && te.Status < 500 {
			return backoff.Permanent(err)
		}
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("upstream fetch attempt failed")
		}
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx))
	span.SetAttributes(attribute.Int("http.attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		var te *domain.TransportError
		if !errors.As(err, &te) {
			err = &domain.TransportError{Err: err}
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, backoff.Permanent(&domain.TransportError{Err: err})
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &domain.TransportError{Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > c.maxBody {
		return nil, backoff.Permanent(&domain.TransportError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, c.maxBody),
		})
	}
	if resp.StatusCode >= 300 {
		return nil, &domain.TransportError{
			Status: resp.StatusCode,
			Msg:    bodyMessage(body),
			Err:    fmt.Errorf("request failed: %s", resp.Status),
		}
	}
	return body, nil
}

// bodyMessage extracts the backend's {"msg": "..."} explanation, if any.
func bodyMessage(body []byte) string {
	var e struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Msg
}
