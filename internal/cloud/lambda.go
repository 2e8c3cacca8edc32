package cloud

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

type LambdaClient struct {
	svc *lambda.Client
}

func NewLambdaClient(cfg aws.Config, optFns ...func(*lambda.Options)) *LambdaClient {
	return &LambdaClient{svc: lambda.NewFromConfig(cfg, optFns...)}
}

// Invoke calls function synchronously and returns its response payload.
func (c *LambdaClient) Invoke(ctx context.Context, function string, payload []byte) ([]byte, error) {
	out, err := c.svc.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(function),
		Payload:        payload,
		InvocationType: types.InvocationTypeRequestResponse,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Lambda: %w", err)
	}
	if out.FunctionError != nil {
		return nil, fmt.Errorf("Lambda function error: %s", aws.ToString(out.FunctionError))
	}
	return out.Payload, nil
}

// PayloadFunction reads the charts payload from a Lambda that either
// returns it directly or wraps it in an API Gateway style response.
type PayloadFunction struct {
	client   *LambdaClient
	function string
}

func (c *LambdaClient) Payload(function string) *PayloadFunction {
	return &PayloadFunction{client: c, function: function}
}

type proxyResponse struct {
	StatusCode int     `json:"statusCode"`
	Body       *string `json:"body"`
}

func (p *PayloadFunction) Fetch(ctx context.Context) ([]byte, error) {
	out, err := p.client.Invoke(ctx, p.function, []byte(`{}`))
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	return unwrapProxy(out)
}

func unwrapProxy(out []byte) ([]byte, error) {
	var resp proxyResponse
	if json.Unmarshal(out, &resp) != nil || resp.StatusCode == 0 || resp.Body == nil {
		return out, nil
	}
	body := []byte(*resp.Body)
	if resp.StatusCode >= 300 {
		var e struct {
			Msg string `json:"msg"`
		}
		_ = json.Unmarshal(body, &e)
		return nil, &domain.TransportError{
			Status: resp.StatusCode,
			Msg:    e.Msg,
		}
	}
	return body, nil
}
