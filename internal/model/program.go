package model

import (
	"time"

	"github.com/shopspring/decimal"

	"academy-storefront/internal/content"
)

type Program struct {
	ID        string           `json:"id,omitempty"`
	Slug      string           `json:"slug"`
	Title     string           `json:"title"`
	Summary   string           `json:"summary,omitempty"`
	Content   content.Document `json:"content"`
	Price     decimal.Decimal  `json:"price"`
	Currency  string           `json:"currency"`
	Iyzilink  string           `json:"iyzilink,omitempty"`
	ImageURL  string           `json:"image_url,omitempty"`
	StartDate *time.Time       `json:"start_date,omitempty"`
	Duration  string           `json:"duration,omitempty"`
	Schedule  string           `json:"schedule,omitempty"`
	Capacity  int              `json:"capacity,omitempty"`
	Outcomes  []string         `json:"outcomes,omitempty"`

	IsPublished bool `json:"is_published"`
	SortOrder   int  `json:"sort_order"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type ProgramFeature struct {
	ID        string `json:"id,omitempty"`
	ProgramID string `json:"program_id"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	Icon      string `json:"icon,omitempty"`
	SortOrder int    `json:"sort_order"`
}

type ProgramFAQ struct {
	ID        string `json:"id,omitempty"`
	ProgramID string `json:"program_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	SortOrder int    `json:"sort_order"`
}
