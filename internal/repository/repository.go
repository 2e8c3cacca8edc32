package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

// ErrNoPayload is returned when the pipeline has not written any payload.
var ErrNoPayload = errors.New("no chart payload stored")

type PayloadRecord struct {
	ID        int64           `db:"id"`
	CreatedAt time.Time       `db:"created_at"`
	Payload   json.RawMessage `db:"payload"`
}

type Payloads struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Payloads { return &Payloads{db: db} }

func (r *Payloads) Latest(ctx context.Context) (*PayloadRecord, error) {
	var rec PayloadRecord
	err := r.db.GetContext(ctx, &rec,
		`SELECT id, created_at, payload FROM ml_chart_payloads ORDER BY created_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoPayload
	}
	if err != nil {
		return nil, fmt.Errorf("select latest payload: %w", err)
	}
	return &rec, nil
}

func (r *Payloads) Insert(ctx context.Context, payload []byte) (int64, error) {
	var id int64
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO ml_chart_payloads (payload) VALUES ($1) RETURNING id`, payload).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert payload: %w", err)
	}
	return id, nil
}

// Prune keeps the newest keep payloads and deletes the rest.
func (r *Payloads) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ml_chart_payloads WHERE id NOT IN (
		SELECT id FROM ml_chart_payloads ORDER BY created_at DESC LIMIT $1)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune payloads: %w", err)
	}
	return res.RowsAffected()
}

// Fetch makes the table a payload source.
func (r *Payloads) Fetch(ctx context.Context) ([]byte, error) {
	rec, err := r.Latest(ctx)
	if errors.Is(err, ErrNoPayload) {
		return nil, &domain.TransportError{Status: http.StatusNotFound, Msg: "ML outputs not found", Err: err}
	}
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	return rec.Payload, nil
}
