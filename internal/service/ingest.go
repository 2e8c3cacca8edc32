package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/normalize"
)

// DefaultOutputsTopic carries complete model-output payloads.
const DefaultOutputsTopic = "ml/outputs"

var ErrNotAnObject = errors.New("payload is not a JSON object")

// PayloadStore persists payloads, e.g. *repository.Payloads.
type PayloadStore interface {
	Insert(ctx context.Context, payload []byte) (int64, error)
	Prune(ctx context.Context, keep int) (int64, error)
}

// Ingestor stores payloads published by the model pipeline and announces
// each stored one so dashboards refresh.
type Ingestor struct {
	store    PayloadStore
	announce func(ModelUpdate) error
	keep     int
	clock    func() time.Time
}

func NewIngestor(store PayloadStore, keep int, announce func(ModelUpdate) error) *Ingestor {
	return &Ingestor{store: store, announce: announce, keep: keep, clock: time.Now}
}

// FromMQTT stores one payload. NaN and Infinity tokens are rewritten to
// null before storage since the JSONB column rejects them.
func (i *Ingestor) FromMQTT(ctx context.Context, topic string, payload []byte) error {
	clean, sanitized := normalize.Sanitize(payload)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(clean, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrNotAnObject, err)
	}

	id, err := i.store.Insert(ctx, clean)
	if err != nil {
		return fmt.Errorf("store payload: %w", err)
	}
	ev := log.Info().Str("topic", topic).Int64("id", id).Int("fields", len(fields)).Bool("sanitized", sanitized)

	if i.keep > 0 {
		n, err := i.store.Prune(ctx, i.keep)
		if err != nil {
			log.Warn().Err(err).Msg("prune payloads failed")
		}
		ev = ev.Int64("pruned", n)
	}
	ev.Msg("payload stored")

	if i.announce == nil {
		return nil
	}
	upd := ModelUpdate{Model: "payload", Version: fmt.Sprint(id), Timestamp: i.clock().UTC()}
	if err := i.announce(upd); err != nil {
		return fmt.Errorf("announce update: %w", err)
	}
	return nil
}
