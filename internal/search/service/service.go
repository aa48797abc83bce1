package service

import (
	"context"
	"strings"

	"archi_crm_backend/internal/search/repository"
	"archi_crm_backend/internal/search/transport"
	"archi_crm_backend/internal/shared/access"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/httpkit"
)

const defaultLimit = 10

type Searcher interface {
	GlobalSearch(ctx context.Context, scope access.Scope, query string, limit int) ([]repository.SearchResult, error)
}

type Service struct {
	repo Searcher
}

func New(repo Searcher) *Service {
	return &Service{repo: repo}
}

// GlobalSearch searches every record the caller may see.
func (s *Service) GlobalSearch(ctx context.Context, id httpkit.Identity, req transport.SearchRequest) (transport.SearchResponse, error) {
	q := strings.TrimSpace(req.Query)
	if len([]rune(q)) < 2 {
		return transport.SearchResponse{Items: []transport.SearchResultItem{}}, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	results, err := s.repo.GlobalSearch(ctx, access.FromIdentity(id), q, limit)
	if err != nil {
		return transport.SearchResponse{}, apperr.Wrap(apperr.KindInternal, "search failed", err).WithOp("search.GlobalSearch")
	}

	total := 0
	if len(results) > 0 {
		// COUNT(*) OVER() is repeated on every row
		total = int(results[0].Total)
	}

	items := make([]transport.SearchResultItem, len(results))
	for i, r := range results {
		items[i] = transport.SearchResultItem{
			ID:           r.ID,
			Type:         r.Type,
			Title:        r.Title,
			Subtitle:     r.Subtitle,
			Status:       r.Status,
			Link:         buildFrontendLink(r.Type, r.ID),
			Score:        float64(r.Score),
			MatchedField: r.MatchedField,
			CreatedAt:    r.CreatedAt,
		}
	}
	return transport.SearchResponse{Items: items, Total: total}, nil
}

func buildFrontendLink(entityType, id string) string {
	switch entityType {
	case "lead":
		return "/app/leads/" + id
	case "contact":
		return "/app/contacts/" + id
	case "client":
		return "/app/clients/" + id
	default:
		return "/app"
	}
}
