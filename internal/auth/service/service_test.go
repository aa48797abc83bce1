package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"archi_crm_backend/internal/auth/password"
	"archi_crm_backend/internal/auth/repository"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type fakeConfig struct{}

func (fakeConfig) GetJWTAccessSecret() string       { return "test-secret" }
func (fakeConfig) GetAuthCookieName() string        { return "crm_token" }
func (fakeConfig) GetAccessTokenTTL() time.Duration { return time.Hour }

type fakeRepo struct {
	users   map[string]repository.User
	created []repository.CreateUserParams
	roles   map[uuid.UUID]string
}

func newFakeRepo(users ...repository.User) *fakeRepo {
	r := &fakeRepo{users: map[string]repository.User{}, roles: map[uuid.UUID]string{}}
	for _, u := range users {
		r.users[strings.ToLower(u.Email)] = u
	}
	return r
}

func (r *fakeRepo) GetUserByEmail(_ context.Context, email string) (repository.User, error) {
	u, ok := r.users[strings.ToLower(email)]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (r *fakeRepo) GetUserByID(_ context.Context, id uuid.UUID) (repository.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return repository.User{}, repository.ErrNotFound
}

func (r *fakeRepo) ResolveUser(ctx context.Context, ref string) (repository.User, error) {
	for _, u := range r.users {
		if u.ID.String() == ref || strings.EqualFold(u.Name, ref) {
			return u, nil
		}
	}
	return repository.User{}, repository.ErrNotFound
}

func (r *fakeRepo) CreateUser(_ context.Context, p repository.CreateUserParams) (repository.User, error) {
	r.created = append(r.created, p)
	return repository.User{ID: uuid.New(), Email: p.Email, Name: p.Name, Role: p.Role, Phone: p.Phone}, nil
}

func (r *fakeRepo) ListUsers(context.Context) ([]repository.User, error) { return nil, nil }

func (r *fakeRepo) SetUserRole(_ context.Context, id uuid.UUID, role string) error {
	r.roles[id] = role
	return nil
}

func (r *fakeRepo) UpdatePreferences(_ context.Context, id uuid.UUID, p repository.PreferencesParams) (repository.User, error) {
	return repository.User{ID: id, Phone: p.Phone}, nil
}

func newUser(t *testing.T, email, role string) repository.User {
	t.Helper()
	hash, err := password.Hash("Archi#2026")
	if err != nil {
		t.Fatal(err)
	}
	return repository.User{ID: uuid.New(), Email: email, Name: "Yasmine Alaoui", Role: role, PasswordHash: hash}
}

func TestSignInIssuesAccessTokenWithIdentityClaims(t *testing.T) {
	user := newUser(t, "yasmine@atelier.ma", "architect")
	svc := New(newFakeRepo(user), fakeConfig{}, logger.New("test"))

	token, expiresAt, _, err := svc.SignIn(context.Background(), "Yasmine@Atelier.ma", "Archi#2026")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatal("expected future expiry")
	}

	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) { return []byte("test-secret"), nil })
	if err != nil || !parsed.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	want := map[string]string{
		"sub":   user.ID.String(),
		"email": user.Email,
		"role":  "architect",
		"name":  "Yasmine Alaoui",
		"type":  "access",
	}
	for k, v := range want {
		if claims[k] != v {
			t.Errorf("claim %s = %v, want %s", k, claims[k], v)
		}
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	user := newUser(t, "yasmine@atelier.ma", "architect")
	svc := New(newFakeRepo(user), fakeConfig{}, logger.New("test"))

	cases := []struct{ email, pass string }{
		{"yasmine@atelier.ma", "wrong"},
		{"nobody@atelier.ma", "Archi#2026"},
	}
	for _, tc := range cases {
		_, _, _, err := svc.SignIn(context.Background(), tc.email, tc.pass)
		if !apperr.Is(err, apperr.KindUnauthorized) {
			t.Errorf("SignIn(%q) error = %v, want unauthorized", tc.email, err)
		}
	}
}

func TestCreateUserNormalizesPhoneAndHashesPassword(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, fakeConfig{}, logger.New("test"))

	_, err := svc.CreateUser(context.Background(), CreateUserInput{
		Email: " karim@atelier.ma ", Name: "Karim", Role: "commercial", Phone: "0612345678", Password: "Archi#2026",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got := repo.created[0]
	if got.Email != "karim@atelier.ma" || got.Phone == nil || *got.Phone != "+212612345678" {
		t.Fatalf("unexpected params %+v", got)
	}
	if password.Compare(got.PasswordHash, "Archi#2026") != nil {
		t.Fatal("password not hashed with bcrypt")
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc := New(newFakeRepo(), fakeConfig{}, logger.New("test"))
	_, err := svc.CreateUser(context.Background(), CreateUserInput{Email: "a@b.ma", Name: "A", Role: "owner", Password: "x"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdminCannotDemoteSelf(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, fakeConfig{}, logger.New("test"))
	self := uuid.New()

	if err := svc.SetUserRole(context.Background(), self, self, "architect"); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	other := uuid.New()
	if err := svc.SetUserRole(context.Background(), self, other, "manager"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.roles[other] != "manager" {
		t.Fatal("role not stored")
	}
}
