package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"archi_crm_backend/internal/search/repository"
	"archi_crm_backend/internal/search/transport"
	"archi_crm_backend/internal/shared/access"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/httpkit"

	"github.com/google/uuid"
)

type fakeSearcher struct {
	results []repository.SearchResult
	err     error
	calls   int
	scope   access.Scope
	query   string
	limit   int
}

func (f *fakeSearcher) GlobalSearch(_ context.Context, scope access.Scope, query string, limit int) ([]repository.SearchResult, error) {
	f.calls++
	f.scope, f.query, f.limit = scope, query, limit
	return f.results, f.err
}

func TestGlobalSearchMapsResultsAndLinks(t *testing.T) {
	now := time.Now()
	repo := &fakeSearcher{results: []repository.SearchResult{
		{ID: "a1", Type: "lead", Title: "Karim", Score: 1, CreatedAt: now, Total: 3},
		{ID: "c1", Type: "contact", Title: "Karim B", Score: 0.95, CreatedAt: now, Total: 3},
		{ID: "k1-o1", Type: "client", Title: "Karim B", Score: 0.9, CreatedAt: now, Total: 3},
	}}
	svc := New(repo)
	architect := httpkit.NewIdentity(uuid.New(), "a@example.com", "Salma", httpkit.RoleArchitect)

	resp, err := svc.GlobalSearch(context.Background(), architect, transport.SearchRequest{Query: "  kar "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.query != "kar" || repo.limit != defaultLimit || !repo.scope.Restricted {
		t.Fatalf("unexpected repository call: %q %d %+v", repo.query, repo.limit, repo.scope)
	}
	if resp.Total != 3 || len(resp.Items) != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}
	want := []string{"/app/leads/a1", "/app/contacts/c1", "/app/clients/k1-o1"}
	for i, link := range want {
		if resp.Items[i].Link != link {
			t.Errorf("item %d link = %q, want %q", i, resp.Items[i].Link, link)
		}
	}
}

func TestGlobalSearchShortQuerySkipsRepository(t *testing.T) {
	repo := &fakeSearcher{}
	svc := New(repo)
	admin := httpkit.NewIdentity(uuid.New(), "admin@example.com", "Admin", httpkit.RoleAdmin)

	resp, err := svc.GlobalSearch(context.Background(), admin, transport.SearchRequest{Query: " é "})
	if err != nil || repo.calls != 0 || resp.Items == nil || resp.Total != 0 {
		t.Fatalf("expected empty result without query, got %+v %v (calls %d)", resp, err, repo.calls)
	}
}

func TestGlobalSearchWrapsStorageErrors(t *testing.T) {
	svc := New(&fakeSearcher{err: errors.New("boom")})
	admin := httpkit.NewIdentity(uuid.New(), "admin@example.com", "Admin", httpkit.RoleAdmin)

	_, err := svc.GlobalSearch(context.Background(), admin, transport.SearchRequest{Query: "villa", Limit: 5})
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}
