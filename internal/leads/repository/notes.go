package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const entityLead = "lead"

type Note struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Kind      string
	Body      string
	Author    string
	CreatedAt time.Time
}

func (r *Repository) CreateNote(ctx context.Context, leadID uuid.UUID, kind, body, author string) (Note, error) {
	n := Note{LeadID: leadID}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notes (entity_type, entity_id, kind, body, author)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, kind, body, author, created_at`,
		entityLead, leadID, kind, body, author).Scan(&n.ID, &n.Kind, &n.Body, &n.Author, &n.CreatedAt)
	if err != nil {
		return Note{}, fmt.Errorf("failed to create lead note: %w", err)
	}
	return n, nil
}

// ListNotes returns the lead's notes oldest first.
func (r *Repository) ListNotes(ctx context.Context, leadID uuid.UUID) ([]Note, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, entity_id, kind, body, author, created_at
		FROM notes
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at ASC`, entityLead, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lead notes: %w", err)
	}
	defer rows.Close()

	notes := make([]Note, 0)
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.LeadID, &n.Kind, &n.Body, &n.Author, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
