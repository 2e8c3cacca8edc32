package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

// S3Client stores chart exports and can serve a payload object as the
// upstream source.
type S3Client struct {
	svc     *s3.Client
	presign *s3.PresignClient
	bucket  string
	expires time.Duration
}

func NewS3Client(cfg aws.Config, bucket string, optFns ...func(*s3.Options)) *S3Client {
	svc := s3.NewFromConfig(cfg, optFns...)
	return &S3Client{
		svc:     svc,
		presign: s3.NewPresignClient(svc),
		bucket:  bucket,
		expires: time.Hour,
	}
}

func (c *S3Client) Bucket() string { return c.bucket }

// Upload stores data under key and returns a presigned download URL.
func (c *S3Client) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := c.svc.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"uploaded-at": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return c.PresignGet(ctx, key)
}

func (c *S3Client) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = c.expires
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return req.URL, nil
}

func (c *S3Client) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := c.svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}
	return b, nil
}

// List returns the keys under prefix.
func (c *S3Client) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(c.svc, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// PayloadObject reads the charts payload from a fixed key.
type PayloadObject struct {
	client *S3Client
	key    string
}

func (c *S3Client) Payload(key string) *PayloadObject {
	return &PayloadObject{client: c, key: key}
}

func (p *PayloadObject) Fetch(ctx context.Context) ([]byte, error) {
	b, err := p.client.Download(ctx, p.key)
	if err != nil {
		log.Error().Err(err).Str("bucket", p.client.bucket).Str("key", p.key).Msg("payload download failed")
		return nil, &domain.TransportError{Err: err}
	}
	return b, nil
}
