package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"archi_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = apperr.NotFound("appointment not found")

// Appointment is a rendez-vous with a lead or contact.
type Appointment struct {
	ID           uuid.UUID
	Title        string
	Description  *string
	Location     *string
	StartTime    time.Time
	EndTime      time.Time
	Status       string
	ContactID    *uuid.UUID
	LeadID       *uuid.UUID
	CreatedBy    uuid.UUID
	Participants []uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Involves reports whether userID created or attends the appointment.
func (a Appointment) Involves(userID uuid.UUID) bool {
	if a.CreatedBy == userID {
		return true
	}
	for _, p := range a.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

type ListParams struct {
	UserID    *uuid.UUID // restricts to appointments the user created or attends
	ContactID *uuid.UUID
	LeadID    *uuid.UUID
	Status    string
	StartFrom *time.Time
	StartTo   *time.Time
	Limit     int
	Offset    int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectColumns = `
	SELECT a.id, a.title, a.description, a.location, a.start_time, a.end_time, a.status,
		a.contact_id, a.lead_id, a.created_by,
		COALESCE((SELECT array_agg(p.user_id ORDER BY p.user_id) FROM appointment_participants p WHERE p.appointment_id = a.id), '{}'),
		a.created_at, a.updated_at
	FROM appointments a`

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.Location, &a.StartTime, &a.EndTime, &a.Status,
		&a.ContactID, &a.LeadID, &a.CreatedBy, &a.Participants, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, ErrNotFound
	}
	return a, err
}

// Create inserts the appointment and its participants in one transaction.
func (r *Repository) Create(ctx context.Context, a Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (id, title, description, location, start_time, end_time, status,
			contact_id, lead_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.Title, a.Description, a.Location, a.StartTime, a.EndTime, a.Status,
		a.ContactID, a.LeadID, a.CreatedBy, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	if err := replaceParticipants(ctx, tx, a.ID, a.Participants); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit appointment: %w", err)
	}
	return nil
}

func replaceParticipants(ctx context.Context, tx pgx.Tx, appointmentID uuid.UUID, participants []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM appointment_participants WHERE appointment_id = $1`, appointmentID); err != nil {
		return fmt.Errorf("failed to clear participants: %w", err)
	}
	if len(participants) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO appointment_participants (appointment_id, user_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING`, appointmentID, participants)
	if err != nil {
		return fmt.Errorf("failed to add participants: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, selectColumns+` WHERE a.id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Appointment{}, fmt.Errorf("failed to get appointment: %w", err)
	}
	return a, err
}

func (r *Repository) List(ctx context.Context, p ListParams) ([]Appointment, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if p.UserID != nil {
		args = append(args, *p.UserID)
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(a.created_by = $%d OR EXISTS (
			SELECT 1 FROM appointment_participants p WHERE p.appointment_id = a.id AND p.user_id = $%d))`, n, n))
	}
	if p.ContactID != nil {
		add("a.contact_id = $%d", *p.ContactID)
	}
	if p.LeadID != nil {
		add("a.lead_id = $%d", *p.LeadID)
	}
	if p.Status != "" {
		add("a.status = $%d", p.Status)
	}
	if p.StartFrom != nil {
		add("a.start_time >= $%d", *p.StartFrom)
	}
	if p.StartTo != nil {
		add("a.start_time <= $%d", *p.StartTo)
	}

	where := "TRUE"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appointments a WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count appointments: %w", err)
	}

	args = append(args, p.Limit, p.Offset)
	rows, err := r.pool.Query(ctx, selectColumns+` WHERE `+where+
		fmt.Sprintf(` ORDER BY a.start_time ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	items := make([]Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

// ListOverlapping returns the scheduled appointments of userID that intersect [start, end).
func (r *Repository) ListOverlapping(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, selectColumns+`
		WHERE a.status = 'scheduled'
			AND a.start_time < $3 AND a.end_time > $2
			AND (a.created_by = $1 OR EXISTS (
				SELECT 1 FROM appointment_participants p WHERE p.appointment_id = a.id AND p.user_id = $1))`,
		userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list overlapping appointments: %w", err)
	}
	defer rows.Close()

	out := make([]Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Update saves the editable fields and replaces the participant list.
func (r *Repository) Update(ctx context.Context, a Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE appointments SET title = $2, description = $3, location = $4, start_time = $5, end_time = $6,
			status = $7, contact_id = $8, lead_id = $9, updated_at = $10
		WHERE id = $1`,
		a.ID, a.Title, a.Description, a.Location, a.StartTime, a.EndTime, a.Status, a.ContactID, a.LeadID, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err := replaceParticipants(ctx, tx, a.ID, a.Participants); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit appointment: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
