// Package queue carries domain events from the API to background workers over
// RabbitMQ, through a local outbox table.
package queue

import (
	"time"

	"academy-storefront/internal/model"
)

const EventOrderCreated = "order.created"

// OrderCreatedEvent is published once per stored order.
type OrderCreatedEvent struct {
	EventID       string              `json:"event_id"`
	OrderID       string              `json:"order_id"`
	ProgramID     string              `json:"program_id"`
	ProgramTitle  string              `json:"program_title"`
	CustomerName  string              `json:"customer_name"`
	CustomerEmail string              `json:"customer_email"`
	Subtotal      string              `json:"subtotal"`
	TaxAmount     string              `json:"tax_amount"`
	TotalAmount   string              `json:"total_amount"`
	Currency      string              `json:"currency"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time           `json:"created_at"`
}

func NewOrderCreatedEvent(eventID string, order *model.Order, now time.Time) OrderCreatedEvent {
	created := now.UTC()
	if order.CreatedAt != nil {
		created = order.CreatedAt.UTC()
	}
	return OrderCreatedEvent{
		EventID:       eventID,
		OrderID:       order.ID,
		ProgramID:     order.ProgramID,
		ProgramTitle:  order.ProgramTitle,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Subtotal:      order.Subtotal.StringFixed(2),
		TaxAmount:     order.TaxAmount.StringFixed(2),
		TotalAmount:   order.TotalAmount.StringFixed(2),
		Currency:      order.Currency,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		CreatedAt:     created,
	}
}
