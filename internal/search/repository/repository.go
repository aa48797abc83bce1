package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"archi_crm_backend/internal/shared/access"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type SearchResult struct {
	ID           string
	Type         string
	Title        string
	Subtitle     string
	Status       string
	MatchedField string
	Score        float32
	CreatedAt    time.Time
	Total        int64
}

var (
	leadScope    = access.Columns{CreatedBy: "l.created_by", AssignedTo: "l.assigned_to"}
	contactScope = access.Columns{CreatedBy: "c.created_by", AssignedTo: "c.architect", Invited: "c.invited_user_ids"}
	clientScope  = access.Columns{
		CreatedBy:  "COALESCE(cp.created_by, c.created_by)",
		AssignedTo: "cp.architect",
		Invited:    "COALESCE(c.invited_user_ids, '{}')",
	}
)

// GlobalSearch matches leads, contacts and client projects by name, phone,
// email, city or project title. Converted leads are left out since their
// contact is listed. Names starting with the query rank first.
func (r *Repository) GlobalSearch(ctx context.Context, scope access.Scope, query string, limit int) ([]SearchResult, error) {
	// The three predicates share $4/$5, so the scope args are bound once.
	leadWhere, scopeArgs := scope.Where(leadScope, 4)
	contactWhere, _ := scope.Where(contactScope, 4)
	clientWhere, _ := scope.Where(clientScope, 4)

	querySQL := fmt.Sprintf(`
		WITH results AS (
			SELECT
				l.id::text AS id,
				'lead'::text AS type,
				l.name AS title,
				concat_ws(' • ', NULLIF(l.city, ''), NULLIF(l.phone, '')) AS subtitle,
				l.status AS status,
				CASE
					WHEN l.name ILIKE $1 THEN 'name'
					WHEN l.phone ILIKE $1 THEN 'phone'
					WHEN l.email ILIKE $1 THEN 'email'
					ELSE 'city'
				END AS matched_field,
				CASE WHEN l.name ILIKE $2 THEN 1.0 ELSE 0.5 END::real AS score,
				l.created_at
			FROM leads l
			WHERE (l.name ILIKE $1 OR l.phone ILIKE $1 OR l.email ILIKE $1 OR l.city ILIKE $1)
				AND NOT EXISTS (SELECT 1 FROM contacts cx WHERE cx.lead_id = l.id)
				AND %s

			UNION ALL

			SELECT
				c.id::text,
				'contact',
				c.name,
				concat_ws(' • ', NULLIF(c.city, ''), NULLIF(c.phone, '')),
				c.tag,
				CASE
					WHEN c.name ILIKE $1 THEN 'name'
					WHEN c.phone ILIKE $1 THEN 'phone'
					WHEN c.email ILIKE $1 THEN 'email'
					ELSE 'city'
				END,
				CASE WHEN c.name ILIKE $2 THEN 0.95 ELSE 0.45 END::real,
				c.created_at
			FROM contacts c
			WHERE (c.name ILIKE $1 OR c.phone ILIKE $1 OR c.email ILIKE $1 OR c.city ILIKE $1)
				AND %s

			UNION ALL

			SELECT
				cp.key,
				'client',
				cp.contact_name,
				concat_ws(' • ', NULLIF(cp.title, ''), NULLIF(cp.city, '')),
				cp.statut_projet,
				CASE
					WHEN cp.contact_name ILIKE $1 THEN 'name'
					WHEN cp.title ILIKE $1 THEN 'title'
					WHEN cp.phone ILIKE $1 THEN 'phone'
					ELSE 'city'
				END,
				CASE WHEN cp.contact_name ILIKE $2 OR cp.title ILIKE $2 THEN 0.9 ELSE 0.4 END::real,
				cp.created_at
			FROM client_projects cp
			LEFT JOIN contacts c ON c.id = cp.contact_id
			WHERE (cp.contact_name ILIKE $1 OR cp.title ILIKE $1 OR cp.phone ILIKE $1 OR cp.city ILIKE $1)
				AND %s
		)
		SELECT id, type, title, subtitle, status, matched_field, score, created_at, COUNT(*) OVER() AS total
		FROM results
		ORDER BY score DESC, created_at DESC
		LIMIT $3`, leadWhere, contactWhere, clientWhere)

	escaped := escapeLike(query)
	args := append([]any{"%" + escaped + "%", escaped + "%", limit}, scopeArgs...)

	rows, err := r.pool.Query(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var res SearchResult
		if err := rows.Scan(&res.ID, &res.Type, &res.Title, &res.Subtitle, &res.Status, &res.MatchedField, &res.Score, &res.CreatedAt, &res.Total); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
