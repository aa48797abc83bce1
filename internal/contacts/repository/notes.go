package repository

import (
	"context"
	"fmt"
	"time"

	"archi_crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Note kinds stored in the unified notes table.
const (
	NoteKindNote    = "note"
	NoteKindCallLog = "call_log"
)

const entityContact = "contact"

type Note struct {
	ID        uuid.UUID
	ContactID uuid.UUID
	Kind      string
	Body      string
	Author    string
	CreatedAt time.Time
}

func (r *Repository) CreateNote(ctx context.Context, contactID uuid.UUID, kind, body, author string) (Note, error) {
	n := Note{ContactID: contactID}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notes (entity_type, entity_id, kind, body, author)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, kind, body, author, created_at`,
		entityContact, contactID, kind, body, author).Scan(&n.ID, &n.Kind, &n.Body, &n.Author, &n.CreatedAt)
	if err != nil {
		return Note{}, fmt.Errorf("failed to create note: %w", err)
	}
	return n, nil
}

func (r *Repository) ListNotes(ctx context.Context, contactID uuid.UUID) ([]Note, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, entity_id, kind, body, author, created_at
		FROM notes
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC`, entityContact, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]Note, 0)
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.ContactID, &n.Kind, &n.Body, &n.Author, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// CopyNotes copies lead notes onto a contact in one batch, keeping each
// note's original timestamp. Notes already copied are skipped.
func (r *Repository) CopyNotes(ctx context.Context, contactID uuid.UUID, notes []domain.Note) error {
	if len(notes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, n := range notes {
		batch.Queue(`
			INSERT INTO notes (entity_type, entity_id, kind, body, author, created_at, copied_from)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (entity_type, entity_id, copied_from) DO NOTHING`,
			entityContact, contactID, n.Kind, n.Body, n.Author, n.CreatedAt, n.ID)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range notes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to copy notes: %w", err)
		}
	}
	return nil
}
