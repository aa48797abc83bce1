package transport

import "time"

type SearchRequest struct {
	Query string `form:"q" validate:"required,min=2,max=100"`
	Limit int    `form:"limit" validate:"omitempty,min=1,max=50"`
}

type SearchResultItem struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`     // "lead", "contact", "client"
	Title        string    `json:"title"`    // name of the person
	Subtitle     string    `json:"subtitle"` // city, phone or project title
	Status       string    `json:"status"`
	Link         string    `json:"link"` // frontend route
	Score        float64   `json:"score"`
	MatchedField string    `json:"matchedField"`
	CreatedAt    time.Time `json:"createdAt"`
}

type SearchResponse struct {
	Items []SearchResultItem `json:"items"`
	Total int                `json:"total"`
}
