package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type HistoriqueEntry struct {
	ID          uuid.UUID
	Type        string
	Description string
	OldValue    *string
	NewValue    *string
	Author      string
	CreatedAt   time.Time
}

type StageInterval struct {
	Stage           string
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationSeconds *int64
}

func (r *Repository) ListHistorique(ctx context.Context, clientKey string) ([]HistoriqueEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, type, description, old_value, new_value, author, created_at
		FROM client_historique
		WHERE client_key = $1
		ORDER BY created_at DESC`, clientKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list historique: %w", err)
	}
	defer rows.Close()

	out := make([]HistoriqueEntry, 0)
	for rows.Next() {
		var h HistoriqueEntry
		if err := rows.Scan(&h.ID, &h.Type, &h.Description, &h.OldValue, &h.NewValue, &h.Author, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *Repository) ListStageHistory(ctx context.Context, clientKey string) ([]StageInterval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT stage, started_at, ended_at, duration_seconds
		FROM client_stage_history
		WHERE client_key = $1
		ORDER BY started_at ASC`, clientKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage history: %w", err)
	}
	defer rows.Close()

	out := make([]StageInterval, 0)
	for rows.Next() {
		var s StageInterval
		if err := rows.Scan(&s.Stage, &s.StartedAt, &s.EndedAt, &s.DurationSeconds); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
