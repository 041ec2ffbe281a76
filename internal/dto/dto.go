package dto

import (
	"time"

	"academy-storefront/internal/checkout"
	"academy-storefront/internal/client"
	"academy-storefront/internal/model"
)

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

type SignUpResponse struct {
	AwaitingConfirmation bool             `json:"awaiting_confirmation"`
	Session              *SessionResponse `json:"session,omitempty"`
}

type SessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	Status        string           `json:"status,omitempty"`
	User          *client.AuthUser `json:"user,omitempty"`
	Profile       *model.Profile   `json:"profile,omitempty"`
	Role          model.Role       `json:"role,omitempty"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
}

type OrderRequest struct {
	ProgramID string `json:"program_id"`
	checkout.Form
}

type ValidateFieldResponse struct {
	Field string               `json:"field"`
	Valid bool                 `json:"valid"`
	Error *checkout.FieldError `json:"error,omitempty"`
}

type ValidationErrorResponse struct {
	Error  string                `json:"error"`
	First  string                `json:"first,omitempty"`
	Fields []checkout.FieldError `json:"fields"`
}

type UpdateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status"`
}

type ReorderRequest struct {
	IDs []string `json:"ids"`
}

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// AdminOrder is one row of the back-office order table. Amount fields are
// left out unless the deployment shows them.
type AdminOrder struct {
	ID               string              `json:"id"`
	CreatedAt        *time.Time          `json:"created_at,omitempty"`
	ProgramTitle     string              `json:"program_title"`
	CustomerName     string              `json:"customer_name"`
	CustomerEmail    string              `json:"customer_email"`
	CustomerPhone    string              `json:"customer_phone"`
	BillingType      model.CustomerType  `json:"billing_type"`
	InvoiceRequested bool                `json:"invoice_requested"`
	PaymentMethod    model.PaymentMethod `json:"payment_method"`
	PaymentStatus    model.PaymentStatus `json:"payment_status"`
	Status           model.OrderStatus   `json:"status"`

	Subtotal    *string `json:"subtotal,omitempty"`
	TaxAmount   *string `json:"tax_amount,omitempty"`
	TotalAmount *string `json:"total_amount,omitempty"`
	Currency    string  `json:"currency,omitempty"`
}

func NewAdminOrder(o *model.Order, showAmounts bool) AdminOrder {
	row := AdminOrder{
		ID:               o.ID,
		CreatedAt:        o.CreatedAt,
		ProgramTitle:     o.ProgramTitle,
		CustomerName:     o.CustomerName,
		CustomerEmail:    o.CustomerEmail,
		CustomerPhone:    o.CustomerPhone,
		BillingType:      o.BillingType,
		InvoiceRequested: o.InvoiceRequested,
		PaymentMethod:    o.PaymentMethod,
		PaymentStatus:    o.PaymentStatus,
		Status:           o.Status,
	}
	if showAmounts {
		subtotal := o.Subtotal.StringFixed(2)
		tax := o.TaxAmount.StringFixed(2)
		total := o.TotalAmount.StringFixed(2)
		row.Subtotal, row.TaxAmount, row.TotalAmount = &subtotal, &tax, &total
		row.Currency = o.Currency
	}
	return row
}

// AdminTransaction is one payment attempt on an order.
type AdminTransaction struct {
	Provider    string              `json:"provider"`
	ProviderRef string              `json:"provider_ref,omitempty"`
	Status      model.PaymentStatus `json:"status"`
	Message     string              `json:"message,omitempty"`
	Amount      *string             `json:"amount,omitempty"`
	CreatedAt   *time.Time          `json:"created_at,omitempty"`
}

type AdminOrderDetail struct {
	AdminOrder
	Transactions []AdminTransaction `json:"transactions"`
}

func NewAdminOrderDetail(o *model.Order, txs []*model.PaymentTransaction, showAmounts bool) AdminOrderDetail {
	res := AdminOrderDetail{
		AdminOrder:   NewAdminOrder(o, showAmounts),
		Transactions: make([]AdminTransaction, 0, len(txs)),
	}
	for _, tx := range txs {
		row := AdminTransaction{
			Provider:    tx.Provider,
			ProviderRef: tx.ProviderRef,
			Status:      tx.Status,
			Message:     tx.Message,
			CreatedAt:   tx.CreatedAt,
		}
		if showAmounts {
			amount := tx.Amount.StringFixed(2)
			row.Amount = &amount
		}
		res.Transactions = append(res.Transactions, row)
	}
	return res
}

type AdminOrderList struct {
	Orders      []AdminOrder `json:"orders"`
	ShowAmounts bool         `json:"show_amounts"`
}

type Page struct {
	Page     int `query:"page"`
	PageSize int `query:"page_size"`
}
