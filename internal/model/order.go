package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

var orderStatuses = map[OrderStatus]bool{
	OrderStatusPending:   true,
	OrderStatusConfirmed: true,
	OrderStatusCompleted: true,
	OrderStatusCancelled: true,
	OrderStatusRefunded:  true,
}

func (s OrderStatus) Valid() bool {
	return orderStatuses[s]
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodIyzilink     PaymentMethod = "iyzilink"
)

var paymentMethods = map[PaymentMethod]bool{
	PaymentMethodCreditCard:   true,
	PaymentMethodBankTransfer: true,
	PaymentMethodIyzilink:     true,
}

func (m PaymentMethod) Valid() bool {
	return paymentMethods[m]
}

type CustomerType string

const (
	CustomerIndividual CustomerType = "individual"
	CustomerCorporate  CustomerType = "corporate"
)

// Order is one row of the orders table: customer, program, pricing and
// payment fields side by side, plus a free-form metadata bag.
type Order struct {
	ID     string  `json:"id,omitempty"`
	UserID *string `json:"user_id,omitempty"`

	ProgramID    string `json:"program_id"`
	ProgramTitle string `json:"program_title"`

	CustomerName     string       `json:"customer_name"`
	CustomerEmail    string       `json:"customer_email"`
	CustomerPhone    string       `json:"customer_phone"`
	BillingType      CustomerType `json:"billing_type"`
	InvoiceRequested bool         `json:"invoice_requested"`
	NationalID       string       `json:"national_id,omitempty"`
	TaxOffice        string       `json:"tax_office,omitempty"`
	TaxNumber        string       `json:"tax_number,omitempty"`
	BillingAddress   string       `json:"billing_address,omitempty"`

	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`

	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Status        OrderStatus   `json:"status"`
	CardLastFour  string        `json:"card_last_four,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type PaymentTransaction struct {
	ID          string          `json:"id,omitempty"`
	OrderID     string          `json:"order_id"`
	Provider    string          `json:"provider"`
	ProviderRef string          `json:"provider_ref,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      PaymentStatus   `json:"status"`
	Message     string          `json:"message,omitempty"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
}
