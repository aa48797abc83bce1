package repository

import (
	"context"
	"fmt"
	"time"

	"archi_crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

type TimelineEvent struct {
	ID            uuid.UUID
	ContactID     uuid.UUID
	OpportunityID *uuid.UUID
	EventType     string
	Title         string
	OldValue      *string
	NewValue      *string
	ActorID       *uuid.UUID
	ActorName     string
	Metadata      map[string]any
	CreatedAt     time.Time
}

func (r *Repository) AppendTimeline(ctx context.Context, e domain.TimelineEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO timeline_events (contact_id, opportunity_id, event_type, title, old_value, new_value, actor_id, actor_name, metadata, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10)`,
		e.ContactID, e.OpportunityID, string(e.EventType), e.Title, e.OldValue, e.NewValue,
		e.Actor.UserID, e.Actor.Name, e.Metadata, e.At)
	if err != nil {
		return fmt.Errorf("failed to append timeline event: %w", err)
	}
	return nil
}

func (r *Repository) ListTimeline(ctx context.Context, contactID uuid.UUID, limit int) ([]TimelineEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, contact_id, opportunity_id, event_type, title, old_value, new_value, actor_id, actor_name, metadata, created_at
		FROM timeline_events
		WHERE contact_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, contactID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list timeline: %w", err)
	}
	defer rows.Close()

	events := make([]TimelineEvent, 0)
	for rows.Next() {
		var e TimelineEvent
		if err := rows.Scan(&e.ID, &e.ContactID, &e.OpportunityID, &e.EventType, &e.Title, &e.OldValue, &e.NewValue,
			&e.ActorID, &e.ActorName, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
