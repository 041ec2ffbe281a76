package model

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Profile extends the backend auth user one-to-one; ID is the auth user id.
type Profile struct {
	ID             string       `json:"id"`
	Email          string       `json:"email"`
	FullName       string       `json:"full_name,omitempty"`
	Phone          string       `json:"phone,omitempty"`
	Role           Role         `json:"role"`
	BillingType    CustomerType `json:"billing_type,omitempty"`
	NationalID     string       `json:"national_id,omitempty"`
	TaxOffice      string       `json:"tax_office,omitempty"`
	TaxNumber      string       `json:"tax_number,omitempty"`
	BillingAddress string       `json:"billing_address,omitempty"`
	CreatedAt      *time.Time   `json:"created_at,omitempty"`
	UpdatedAt      *time.Time   `json:"updated_at,omitempty"`
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

type SecurityEventType string

const (
	SecurityEventSignIn       SecurityEventType = "sign_in"
	SecurityEventSignInFailed SecurityEventType = "sign_in_failed"
	SecurityEventSignUp       SecurityEventType = "sign_up"
	SecurityEventSignOut      SecurityEventType = "sign_out"
)

type SecurityEvent struct {
	ID        string            `json:"id,omitempty"`
	UserID    *string           `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	EventType SecurityEventType `json:"event_type"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
}
