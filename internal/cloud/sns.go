package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

type SNSClient struct {
	svc      *sns.Client
	topicArn string
}

func NewSNSClient(cfg aws.Config, topicArn string, optFns ...func(*sns.Options)) *SNSClient {
	return &SNSClient{svc: sns.NewFromConfig(cfg, optFns...), topicArn: topicArn}
}

func (c *SNSClient) SendAlert(ctx context.Context, subject, message string) error {
	out, err := c.svc.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(c.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	log.Info().Str("message_id", aws.ToString(out.MessageId)).Msg("alert sent")
	return nil
}

// SendAnomalyAlert publishes one message listing the given anomalies.
func (c *SNSClient) SendAnomalyAlert(ctx context.Context, records []domain.AnomalyRecord) error {
	if len(records) == 0 {
		return nil
	}
	return c.SendAlert(ctx, AnomalySubject(records), AnomalyMessage(records))
}

func AnomalySubject(records []domain.AnomalyRecord) string {
	if len(records) == 1 {
		return "PowerSense Alert: HIGH severity anomaly detected"
	}
	return fmt.Sprintf("PowerSense Alert: %d HIGH severity anomalies detected", len(records))
}

func AnomalyMessage(records []domain.AnomalyRecord) string {
	var b strings.Builder
	b.WriteString("Anomaly Detection Alert\n\n")
	for i, r := range records {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Timestamp)
		fmt.Fprintf(&b, "   Actual: %s kW  Predicted: %s kW\n",
			domain.FormatSample(r.Actual, 2), domain.FormatSample(r.Predicted, 2))
		fmt.Fprintf(&b, "   Residual: %s  Deviation: %s%%\n",
			domain.FormatSample(r.Residual, 4), domain.FormatSample(r.DeviationPct, 2))
	}
	b.WriteString("\nPlease investigate immediately.")
	return b.String()
}
