package adapter

import (
	"context"
	"testing"

	"archi_crm_backend/internal/auth/repository"
	"archi_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

type stubReader struct {
	user repository.User
}

func (s stubReader) GetUserByID(_ context.Context, id uuid.UUID) (repository.User, error) {
	if id != s.user.ID {
		return repository.User{}, repository.ErrNotFound
	}
	return s.user, nil
}

func (s stubReader) ResolveUser(_ context.Context, ref string) (repository.User, error) {
	if ref != s.user.Name && ref != s.user.ID.String() {
		return repository.User{}, repository.ErrNotFound
	}
	return s.user, nil
}

func TestResolveRecipientCopiesChannelPreferences(t *testing.T) {
	phone := "+212612345678"
	user := repository.User{ID: uuid.New(), Name: "Yasmine", Email: "y@atelier.ma", Phone: &phone, NotifyWhatsApp: true, NotifyEmail: true}
	dir := NewRecipientDirectory(stubReader{user: user})

	r, err := dir.ResolveRecipient(context.Background(), "Yasmine")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.UserID != user.ID || r.Phone != phone || !r.NotifyWhatsApp || r.NotifySMS || !r.NotifyEmail {
		t.Fatalf("unexpected recipient %+v", r)
	}

	_, err = dir.ResolveRecipient(context.Background(), "Inconnu")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
