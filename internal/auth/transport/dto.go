package transport

import (
	"time"

	"github.com/google/uuid"
)

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	User        UserResponse `json:"user"`
}

type UserResponse struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	Phone          *string   `json:"phone,omitempty"`
	NotifyWhatsApp bool      `json:"notifyWhatsApp"`
	NotifySMS      bool      `json:"notifySms"`
	NotifyEmail    bool      `json:"notifyEmail"`
	CreatedAt      time.Time `json:"createdAt"`
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,notblank,max=120"`
	Role     string `json:"role" validate:"required,role"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Password string `json:"password" validate:"required,strongpassword"`
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

type UpdatePreferencesRequest struct {
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	NotifyWhatsApp *bool   `json:"notifyWhatsApp"`
	NotifySMS      *bool   `json:"notifySms"`
	NotifyEmail    *bool   `json:"notifyEmail"`
}
