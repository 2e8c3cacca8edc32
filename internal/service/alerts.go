package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/telemetry"
)

const maxRemembered = 4096

// Notifier delivers anomaly alerts, e.g. *cloud.SNSClient.
type Notifier interface {
	SendAnomalyAlert(ctx context.Context, records []domain.AnomalyRecord) error
}

// Alerter publishes each live HIGH severity anomaly once.
type Alerter struct {
	notifier Notifier
	metrics  *telemetry.Metrics
	timeout  time.Duration

	mu   sync.Mutex
	sent map[string]struct{}
}

func NewAlerter(n Notifier, m *telemetry.Metrics) *Alerter {
	return &Alerter{notifier: n, metrics: m, timeout: 10 * time.Second, sent: map[string]struct{}{}}
}

func recordKey(r domain.AnomalyRecord) string {
	return r.Timestamp + "|" + domain.FormatSample(r.Residual, 6)
}

// Observe is a Dashboard listener. Synthetic anomaly lists never alert.
func (a *Alerter) Observe(st *State) {
	if st.Loading || st.Err != nil || st.Snapshot == nil {
		return
	}
	list := st.Snapshot.AnomalyList
	if list == nil || list.Origin() != domain.OriginLive {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	fresh := lo.Filter(list.BySeverity(domain.TierHigh), func(r domain.AnomalyRecord, _ int) bool {
		_, seen := a.sent[recordKey(r)]
		return !seen
	})
	fresh = lo.UniqBy(fresh, recordKey)
	if len(fresh) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.notifier.SendAnomalyAlert(ctx, fresh); err != nil {
		log.Error().Err(err).Int("anomalies", len(fresh)).Msg("anomaly alert failed")
		return
	}

	if len(a.sent)+len(fresh) > maxRemembered {
		a.sent = map[string]struct{}{}
	}
	for _, r := range fresh {
		a.sent[recordKey(r)] = struct{}{}
		a.metrics.AlertSent()
	}
	log.Info().Int("anomalies", len(fresh)).Msg("anomaly alert sent")
}
