package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"academy-storefront/internal/content"
)

type BlogCategory struct {
	ID   string `json:"id,omitempty"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type BlogPost struct {
	ID          string           `json:"id,omitempty"`
	Slug        string           `json:"slug"`
	Title       string           `json:"title"`
	Excerpt     string           `json:"excerpt,omitempty"`
	Content     content.Document `json:"content"`
	CoverImage  string           `json:"cover_image,omitempty"`
	CategoryID  *string          `json:"category_id,omitempty"`
	IsPublished bool             `json:"is_published"`
	PublishedAt *time.Time       `json:"published_at,omitempty"`
	CreatedAt   *time.Time       `json:"created_at,omitempty"`
	UpdatedAt   *time.Time       `json:"updated_at,omitempty"`
}

type SubscriptionPlan struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Interval  string          `json:"interval"`
	Features  []string        `json:"features,omitempty"`
	IsActive  bool            `json:"is_active"`
	SortOrder int             `json:"sort_order"`
}

type SiteSetting struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}
