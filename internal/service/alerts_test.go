package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/fallback"
)

type recordingNotifier struct {
	batches [][]domain.AnomalyRecord
	err     error
}

func (n *recordingNotifier) SendAnomalyAlert(_ context.Context, records []domain.AnomalyRecord) error {
	if n.err != nil {
		return n.err
	}
	n.batches = append(n.batches, records)
	return nil
}

func liveList(records ...domain.AnomalyRecord) *State {
	return &State{Snapshot: &domain.Snapshot{
		AnomalyList: &domain.AnomalyList{Meta: domain.Live(), Records: records},
	}}
}

func anomaly(ts string, tier domain.Tier) domain.AnomalyRecord {
	return domain.AnomalyRecord{Timestamp: ts, Residual: domain.Num(1), Severity: tier}
}

func TestAlerterSendsEachHighOnce(t *testing.T) {
	n := &recordingNotifier{}
	a := NewAlerter(n, nil)

	a.Observe(liveList(anomaly("t1", domain.TierHigh), anomaly("t2", domain.TierLow), anomaly("t3", domain.TierHigh)))
	a.Observe(liveList(anomaly("t1", domain.TierHigh), anomaly("t4", domain.TierHigh)))
	a.Observe(liveList(anomaly("t4", domain.TierHigh)))

	if assert.Len(t, n.batches, 2) {
		assert.Len(t, n.batches[0], 2)
		assert.Equal(t, "t4", n.batches[1][0].Timestamp)
	}
}

func TestAlerterSkipsSyntheticAndLoading(t *testing.T) {
	n := &recordingNotifier{}
	a := NewAlerter(n, nil)

	a.Observe(&State{Snapshot: &domain.Snapshot{AnomalyList: fallback.AnomalyList()}})
	st := liveList(anomaly("t1", domain.TierHigh))
	st.Loading = true
	a.Observe(st)
	a.Observe(&State{})

	assert.Empty(t, n.batches)
}

func TestAlerterRetriesAfterFailure(t *testing.T) {
	n := &recordingNotifier{err: errors.New("throttled")}
	a := NewAlerter(n, nil)

	a.Observe(liveList(anomaly("t1", domain.TierHigh)))
	assert.Empty(t, n.batches)

	n.err = nil
	a.Observe(liveList(anomaly("t1", domain.TierHigh)))
	assert.Len(t, n.batches, 1)
}
