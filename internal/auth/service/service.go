package service

import (
	"context"
	"strings"
	"time"

	"archi_crm_backend/internal/auth/password"
	"archi_crm_backend/internal/auth/repository"
	"archi_crm_backend/platform/apperr"
	"archi_crm_backend/platform/config"
	"archi_crm_backend/platform/httpkit"
	"archi_crm_backend/platform/logger"
	"archi_crm_backend/platform/phone"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const accessTokenType = "access"

var ErrInvalidCredentials = apperr.Unauthorized("invalid credentials")

type Service struct {
	repo repository.AuthRepository
	cfg  config.AuthServiceConfig
	log  *logger.Logger
	now  func() time.Time
}

func New(repo repository.AuthRepository, cfg config.AuthServiceConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, log: log, now: time.Now}
}

// SignIn checks the password and returns a signed access token with its expiry.
func (s *Service) SignIn(ctx context.Context, email, plainPassword string) (string, time.Time, repository.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.AuthEvent("sign_in", email, false, "unknown email")
			return "", time.Time{}, repository.User{}, ErrInvalidCredentials
		}
		return "", time.Time{}, repository.User{}, err
	}

	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		s.log.AuthEvent("sign_in", email, false, "password mismatch")
		return "", time.Time{}, repository.User{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.signAccessToken(user)
	if err != nil {
		return "", time.Time{}, repository.User{}, err
	}

	s.log.AuthEvent("sign_in", user.Email, true, "")
	return token, expiresAt, user, nil
}

func (s *Service) signAccessToken(user repository.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.GetAccessTokenTTL())
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"role":  user.Role,
		"name":  user.Name,
		"type":  accessTokenType,
		"exp":   expiresAt.Unix(),
		"iat":   now.Unix(),
	}

	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tokenObj.SignedString([]byte(s.cfg.GetJWTAccessSecret()))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *Service) GetMe(ctx context.Context, userID uuid.UUID) (repository.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *Service) ListUsers(ctx context.Context) ([]repository.User, error) {
	return s.repo.ListUsers(ctx)
}

type CreateUserInput struct {
	Email    string
	Name     string
	Role     string
	Phone    string
	Password string
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (repository.User, error) {
	if !isKnownRole(in.Role) {
		return repository.User{}, apperr.Validation("unknown role")
	}

	var phonePtr *string
	if strings.TrimSpace(in.Phone) != "" {
		normalized := phone.NormalizeE164(in.Phone)
		if !phone.IsValid(normalized) {
			return repository.User{}, apperr.Validation("invalid phone number")
		}
		phonePtr = &normalized
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return repository.User{}, err
	}

	return s.repo.CreateUser(ctx, repository.CreateUserParams{
		Email:        strings.TrimSpace(in.Email),
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		Phone:        phonePtr,
		PasswordHash: hash,
	})
}

func (s *Service) SetUserRole(ctx context.Context, actorID, userID uuid.UUID, role string) error {
	if !isKnownRole(role) {
		return apperr.Validation("unknown role")
	}
	if actorID == userID && role != httpkit.RoleAdmin {
		return apperr.Forbidden("admins cannot demote themselves")
	}
	return s.repo.SetUserRole(ctx, userID, role)
}

type PreferencesInput struct {
	Phone          *string
	NotifyWhatsApp *bool
	NotifySMS      *bool
	NotifyEmail    *bool
}

func (s *Service) UpdatePreferences(ctx context.Context, userID uuid.UUID, in PreferencesInput) (repository.User, error) {
	params := repository.PreferencesParams{
		NotifyWhatsApp: in.NotifyWhatsApp,
		NotifySMS:      in.NotifySMS,
		NotifyEmail:    in.NotifyEmail,
	}
	if in.Phone != nil {
		normalized := phone.NormalizeE164(*in.Phone)
		if !phone.IsValid(normalized) {
			return repository.User{}, apperr.Validation("invalid phone number")
		}
		params.Phone = &normalized
	}
	return s.repo.UpdatePreferences(ctx, userID, params)
}

func isKnownRole(role string) bool {
	switch role {
	case httpkit.RoleAdmin, httpkit.RoleManager, httpkit.RoleArchitect, httpkit.RoleCommercial:
		return true
	}
	return false
}
