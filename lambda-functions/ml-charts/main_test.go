package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	body string
	err  error
	key  string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.key = *in.Key
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestHandleServesPayload(t *testing.T) {
	fake := &fakeS3{body: `{"metrics":{}}`}
	h := &handler{s3: fake, bucket: "b", key: "payloads/latest.json"}

	resp, err := h.Handle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, `{"metrics":{}}`, resp.Body)
	assert.Equal(t, "payloads/latest.json", fake.key)
}

func TestHandleMissingPayload(t *testing.T) {
	h := &handler{s3: &fakeS3{err: &types.NoSuchKey{}}, bucket: "b", key: "k"}

	resp, err := h.Handle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.JSONEq(t, `{"msg":"ML outputs not found"}`, resp.Body)
}

func TestHandleS3Failure(t *testing.T) {
	h := &handler{s3: &fakeS3{err: errors.New("throttled")}, bucket: "b", key: "k"}

	resp, err := h.Handle(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 502, resp.StatusCode)
}
