package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"archi_crm_backend/internal/leads/repository"
	"archi_crm_backend/platform/logger"
	"archi_crm_backend/platform/phone"
	"archi_crm_backend/platform/sanitize"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	defaultStatus = "nouveau"
	defaultSource = "import"
)

var columns = []string{"name", "phone", "city", "property_type", "source", "status", "assigned_to", "note"}

type leadRow struct {
	line   int
	params repository.CreateParams
	note   string
}

type rejectedRow struct {
	line   int
	reason string
}

// LeadWriter is the subset of the leads repository the importer writes through.
type LeadWriter interface {
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	Create(ctx context.Context, p repository.CreateParams) (repository.Lead, error)
	CreateNote(ctx context.Context, leadID uuid.UUID, kind, body, author string) (repository.Note, error)
}

type importStats struct {
	imported   int
	duplicates int
	failed     int
}

// parseRows reads a header row then one lead per line. Headers are matched
// case-insensitively; unknown headers are ignored and name and phone are required.
func parseRows(r io.Reader) ([]leadRow, []rejectedRow, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range columns[:2] {
		if _, ok := index[required]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", required)
		}
	}

	var rows []leadRow
	var rejected []rejectedRow
	seen := make(map[string]int)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			rejected = append(rejected, rejectedRow{line: line, reason: err.Error()})
			continue
		}

		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(sanitize.Text(record[i]))
		}

		name := field("name")
		raw := field("phone")
		if name == "" {
			rejected = append(rejected, rejectedRow{line: line, reason: "missing name"})
			continue
		}
		if !phone.IsValid(raw) {
			rejected = append(rejected, rejectedRow{line: line, reason: "invalid phone " + raw})
			continue
		}
		normalized := phone.NormalizeE164(raw)
		if first, dup := seen[normalized]; dup {
			rejected = append(rejected, rejectedRow{line: line, reason: fmt.Sprintf("phone already on line %d", first)})
			continue
		}
		seen[normalized] = line

		rows = append(rows, leadRow{
			line: line,
			params: repository.CreateParams{
				Name:         name,
				Phone:        normalized,
				City:         field("city"),
				PropertyType: field("property_type"),
				Source:       orDefault(field("source"), defaultSource),
				Status:       orDefault(strings.ToLower(field("status")), defaultStatus),
				AssignedTo:   field("assigned_to"),
			},
			note: field("note"),
		})
	}
	return rows, rejected, nil
}

// importRows creates every row whose phone is not already used by a lead or a contact.
func importRows(ctx context.Context, repo LeadWriter, rows []leadRow, log *logger.Logger) importStats {
	var stats importStats
	for _, row := range rows {
		exists, err := repo.ExistsByPhone(ctx, row.params.Phone)
		if err != nil {
			log.Error("phone lookup failed", "line", row.line, "error", err)
			stats.failed++
			continue
		}
		if exists {
			stats.duplicates++
			continue
		}

		lead, err := repo.Create(ctx, row.params)
		if err != nil {
			log.Error("lead insert failed", "line", row.line, "error", err)
			stats.failed++
			continue
		}
		stats.imported++

		if row.note != "" {
			if _, err := repo.CreateNote(ctx, lead.ID, "note", row.note, "import"); err != nil {
				log.SideEffectFailed("create_lead_note", lead.ID.String(), err)
			}
		}
	}
	return stats
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
