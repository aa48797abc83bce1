package repository

import (
	"context"
	"fmt"
	"time"

	"archi_crm_backend/internal/pipeline"
	"archi_crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

// UpsertMirror writes the mirror row of an opportunity. The stored stage is
// only replaced when setStage is true; a new row opens its first interval.
func (r *Repository) UpsertMirror(ctx context.Context, m domain.ClientMirror, setStage bool) error {
	var inserted bool
	err := r.pool.QueryRow(ctx, `
		INSERT INTO client_projects AS cp (key, origin, contact_id, opportunity_id, contact_name, phone, email, city, title, type, budget, architect, statut_projet)
		VALUES ($1, 'opportunity', $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (key) DO UPDATE SET
			contact_name = EXCLUDED.contact_name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			city = EXCLUDED.city,
			title = EXCLUDED.title,
			type = EXCLUDED.type,
			budget = EXCLUDED.budget,
			architect = EXCLUDED.architect,
			statut_projet = CASE WHEN $13 THEN EXCLUDED.statut_projet ELSE cp.statut_projet END,
			updated_at = now()
		RETURNING (xmax = 0)`,
		m.Key, m.ContactID, m.OpportunityID, m.ContactName, m.Phone, m.Email, m.City, m.Title, string(m.Type),
		m.Budget, m.Architect, m.Stage, setStage).Scan(&inserted)
	if err != nil {
		return fmt.Errorf("failed to upsert mirror: %w", err)
	}
	if inserted {
		return r.OpenStageInterval(ctx, m.Key, m.Stage, time.Now())
	}
	return nil
}

func (r *Repository) DeleteMirror(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM client_projects WHERE key = $1 AND origin = 'opportunity'`, key)
	if err != nil {
		return fmt.Errorf("failed to delete mirror: %w", err)
	}
	return nil
}

func (r *Repository) CloseStageInterval(ctx context.Context, clientKey string, endedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE client_stage_history SET
			ended_at = $2,
			duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($2 - started_at)))::bigint
		WHERE client_key = $1 AND ended_at IS NULL`, clientKey, endedAt)
	if err != nil {
		return fmt.Errorf("failed to close stage interval: %w", err)
	}
	return nil
}

func (r *Repository) OpenStageInterval(ctx context.Context, clientKey string, stage domain.Stage, startedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO client_stage_history (client_key, stage, started_at) VALUES ($1, $2, $3)`,
		clientKey, stage, startedAt)
	if err != nil {
		return fmt.Errorf("failed to open stage interval: %w", err)
	}
	return nil
}

// SetClientStage stores the stage where the record's kind keeps it: the
// client_projects row, or the contact status for a contact pseudo-client.
func (r *Repository) SetClientStage(ctx context.Context, client domain.ClientRecord, stage domain.Stage) error {
	var (
		query string
		arg   any
	)
	switch client.Kind {
	case domain.ClientContact:
		if client.ContactID == nil {
			return fmt.Errorf("contact client %q has no contact id", client.Key)
		}
		query = `UPDATE contacts SET status = $2, updated_at = now() WHERE id = $1`
		arg = *client.ContactID
	default:
		query = `UPDATE client_projects SET statut_projet = $2, updated_at = now() WHERE key = $1`
		arg = client.Key
	}

	tag, err := r.pool.Exec(ctx, query, arg, stage)
	if err != nil {
		return fmt.Errorf("failed to set client stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) AppendHistorique(ctx context.Context, e domain.HistoriqueEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO client_historique (client_key, type, description, old_value, new_value, author, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)`,
		e.ClientKey, e.Type, e.Description, e.OldValue, e.NewValue, e.Author, e.At)
	if err != nil {
		return fmt.Errorf("failed to append historique: %w", err)
	}
	return nil
}

// MirrorStages returns the current statut_projet of every mirror row of a contact.
func (r *Repository) MirrorStages(ctx context.Context, contactID uuid.UUID) (map[string]domain.Stage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT key, statut_projet FROM client_projects
		WHERE contact_id = $1 AND origin = 'opportunity'`, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror stages: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Stage)
	for rows.Next() {
		var key string
		var stage domain.Stage
		if err := rows.Scan(&key, &stage); err != nil {
			return nil, err
		}
		out[key] = stage
	}
	return out, rows.Err()
}

var (
	_ pipeline.ClientGateway = (*Repository)(nil)
	_ pipeline.MirrorSource  = (*Repository)(nil)
)
