package main

import (
	"context"
	"strings"
	"testing"

	"archi_crm_backend/internal/leads/repository"
	"archi_crm_backend/platform/logger"

	"github.com/google/uuid"
)

const sample = "\ufeffName,Phone,City,Property_Type,Source,Status,Assigned_To,Note\n" +
	"Karim Benali,0612345678,Casablanca,villa,,,Amine,Rappeler lundi\n" +
	"Salma Idrissi,+212 661-234567,Rabat,appartement,salon,Qualifie,,\n" +
	",0612345679,Fès,,,,,\n" +
	"Youssef,12,Tanger,,,,,\n" +
	"Karim B.,+212612345678,Casablanca,,,,,\n"

type fakeLeads struct {
	existing map[string]bool
	created  []repository.CreateParams
	notes    []string
}

func (f *fakeLeads) ExistsByPhone(_ context.Context, phone string) (bool, error) {
	return f.existing[phone], nil
}

func (f *fakeLeads) Create(_ context.Context, p repository.CreateParams) (repository.Lead, error) {
	f.created = append(f.created, p)
	return repository.Lead{ID: uuid.New(), Name: p.Name, Phone: p.Phone}, nil
}

func (f *fakeLeads) CreateNote(_ context.Context, _ uuid.UUID, _, body, _ string) (repository.Note, error) {
	f.notes = append(f.notes, body)
	return repository.Note{}, nil
}

func TestParseRowsNormalizesAndRejects(t *testing.T) {
	rows, rejected, err := parseRows(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 valid rows, got %d", len(rows))
	}
	if rows[0].params.Phone != "+212612345678" || rows[0].params.Status != defaultStatus || rows[0].params.Source != defaultSource {
		t.Fatalf("unexpected first row: %+v", rows[0].params)
	}
	if rows[0].note != "Rappeler lundi" || rows[0].params.AssignedTo != "Amine" {
		t.Fatalf("note or assignee lost: %+v", rows[0])
	}
	if rows[1].params.Phone != "+212661234567" || rows[1].params.Status != "qualifie" || rows[1].params.Source != "salon" {
		t.Fatalf("unexpected second row: %+v", rows[1].params)
	}
	if len(rejected) != 3 {
		t.Fatalf("expected 3 rejected rows, got %+v", rejected)
	}
	if rejected[2].line != 6 || !strings.Contains(rejected[2].reason, "line 2") {
		t.Fatalf("expected in-file duplicate of line 2, got %+v", rejected[2])
	}
}

func TestParseRowsRequiresPhoneColumn(t *testing.T) {
	if _, _, err := parseRows(strings.NewReader("name,city\nKarim,Rabat\n")); err == nil {
		t.Fatal("expected missing column error")
	}
}

func TestImportSkipsKnownPhones(t *testing.T) {
	rows, _, err := parseRows(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	repo := &fakeLeads{existing: map[string]bool{"+212661234567": true}}

	stats := importRows(context.Background(), repo, rows, logger.New("test"))
	if stats.imported != 1 || stats.duplicates != 1 || stats.failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(repo.created) != 1 || repo.created[0].Name != "Karim Benali" {
		t.Fatalf("unexpected inserts: %+v", repo.created)
	}
	if len(repo.notes) != 1 {
		t.Fatalf("expected the note to be copied, got %v", repo.notes)
	}
}
