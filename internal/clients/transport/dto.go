package transport

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request DTOs
type ListClientsRequest struct {
	Search   string `form:"search" validate:"max=100"`
	Category string `form:"category" validate:"omitempty,oneof=en_cours termine en_attente excluded"`
	Stage    string `form:"stage" validate:"omitempty,stage"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type CreateClientRequest struct {
	Name      string           `json:"name" validate:"required,notblank,max=200"`
	Phone     string           `json:"phone" validate:"omitempty,max=32"`
	Email     string           `json:"email" validate:"omitempty,email,max=200"`
	City      string           `json:"city" validate:"omitempty,max=120"`
	Title     string           `json:"title" validate:"omitempty,max=200"`
	Type      string           `json:"type" validate:"omitempty,oneof=villa appartement magasin bureau riad studio renovation autre"`
	Budget    *decimal.Decimal `json:"budget"`
	Architect string           `json:"architect" validate:"omitempty,max=200"`
	Stage     string           `json:"statutProjet" validate:"omitempty,stage"`
}

type ChangeStageRequest struct {
	Stage string `json:"statutProjet" validate:"required,notblank"`
}

type CreateDevisRequest struct {
	Title  string          `json:"title" validate:"required,notblank,max=200"`
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes" validate:"max=2000"`
}

type UpdateDevisStatusRequest struct {
	Status string `json:"statut" validate:"required,oneof=en_attente accepte refuse"`
}

type SetFactureRegleeRequest struct {
	FactureReglee bool `json:"factureReglee"`
}

type DevisUploadRequest struct {
	FileName    string `json:"fileName" validate:"required,notblank,max=255"`
	ContentType string `json:"contentType" validate:"required"`
	SizeBytes   int64  `json:"sizeBytes" validate:"required,min=1"`
}

type CreatePaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    *time.Time      `json:"paidAt"`
	Method    string          `json:"method" validate:"required,oneof=espece virement cheque"`
	Reference string          `json:"reference" validate:"max=120"`
	Notes     string          `json:"notes" validate:"max=2000"`
}

// Response DTOs
type ClientResponse struct {
	Key           string           `json:"key"`
	Kind          string           `json:"kind"`
	ContactID     *uuid.UUID       `json:"contactId,omitempty"`
	OpportunityID *uuid.UUID       `json:"opportunityId,omitempty"`
	Name          string           `json:"name"`
	Phone         string           `json:"phone,omitempty"`
	Email         string           `json:"email,omitempty"`
	City          string           `json:"city,omitempty"`
	Title         string           `json:"title,omitempty"`
	Type          string           `json:"type,omitempty"`
	Budget        *decimal.Decimal `json:"budget,omitempty"`
	Architect     string           `json:"architect,omitempty"`
	Stage         string           `json:"statutProjet"`
	Category      string           `json:"category"`
	CreatedAt     time.Time        `json:"createdAt"`
}

type ClientListResponse struct {
	Items      []ClientResponse `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

type ClientStatsResponse struct {
	Total     int `json:"total"`
	EnCours   int `json:"enCours"`
	Termine   int `json:"termine"`
	EnAttente int `json:"enAttente"`
	Excluded  int `json:"excluded"`
}

type ClientDetailResponse struct {
	ClientResponse
	Devis        []DevisResponse         `json:"devis"`
	Payments     []PaymentResponse       `json:"payments"`
	Historique   []HistoriqueResponse    `json:"historique"`
	StageHistory []StageIntervalResponse `json:"stageHistory"`
	TotalPaid    decimal.Decimal         `json:"totalPaid"`
}

type DevisResponse struct {
	ID            uuid.UUID       `json:"id"`
	ClientKey     string          `json:"clientKey"`
	Title         string          `json:"title"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"statut"`
	FactureReglee bool            `json:"factureReglee"`
	HasDocument   bool            `json:"hasDocument"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type PaymentResponse struct {
	ID        uuid.UUID       `json:"id"`
	ClientKey string          `json:"clientKey"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paidAt"`
	Method    string          `json:"method"`
	Reference string          `json:"reference,omitempty"`
	Type      string          `json:"type"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type HistoriqueResponse struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	OldValue    *string   `json:"oldValue,omitempty"`
	NewValue    *string   `json:"newValue,omitempty"`
	Author      string    `json:"author"`
	CreatedAt   time.Time `json:"createdAt"`
}

type StageIntervalResponse struct {
	Stage           string     `json:"stage"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationSeconds *int64     `json:"durationSeconds,omitempty"`
}

type PresignedURLResponse struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}
