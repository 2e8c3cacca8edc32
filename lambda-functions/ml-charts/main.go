package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Serves the latest model-output payload as an API Gateway proxy response,
// the same contract as GET /routes/ml/charts.

type objectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type handler struct {
	s3     objectGetter
	bucket string
	key    string
}

func newHandler(ctx context.Context) (*handler, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(os.Getenv("AWS_REGION")))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	h := &handler{
		s3:     s3.NewFromConfig(cfg),
		bucket: os.Getenv("S3_BUCKET"),
		key:    os.Getenv("PAYLOAD_KEY"),
	}
	if h.bucket == "" {
		h.bucket = "energy-grid-reports"
	}
	if h.key == "" {
		h.key = "payloads/latest.json"
	}
	return h, nil
}

func (h *handler) Handle(ctx context.Context) (events.APIGatewayProxyResponse, error) {
	out, err := h.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(h.key),
	})
	var missing *types.NoSuchKey
	if errors.As(err, &missing) {
		return message(404, "ML outputs not found"), nil
	}
	if err != nil {
		return message(502, "failed to read ML outputs"), fmt.Errorf("get %s/%s: %w", h.bucket, h.key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return message(502, "failed to read ML outputs"), fmt.Errorf("read %s: %w", h.key, err)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

func message(status int, msg string) events.APIGatewayProxyResponse {
	b, _ := json.Marshal(map[string]string{"msg": msg})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}
}

func main() {
	h, err := newHandler(context.Background())
	if err != nil {
		panic(err)
	}
	lambda.Start(h.Handle)
}
