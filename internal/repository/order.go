package repository

import (
	"context"
	"time"

	"academy-storefront/internal/client"
	"academy-storefront/internal/model"
)

const ordersTable = "orders"

type OrderFilter struct {
	Status model.OrderStatus
	Email  string
	Limit  int
	Offset int
}

type OrderRepository interface {
	// Create inserts one order and returns the stored row, or nil when the
	// backend answered without a row.
	Create(ctx context.Context, order *model.Order) (*model.Order, error)
	FindByID(ctx context.Context, orderID string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*model.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, status model.PaymentStatus) error
	Delete(ctx context.Context, orderID string) error
}

type orderRepoImpl struct {
	backend client.BackendClient
}

func NewOrderRepository(backend client.BackendClient) OrderRepository {
	return &orderRepoImpl{
		backend: backend,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, order *model.Order) (*model.Order, error) {
	var rows []*model.Order
	if err := r.backend.Mutate(ctx, client.Insert(ordersTable, order), &rows); err != nil {
		return nil, err
	}
	created, _ := first(rows)
	return created, nil
}

func (r *orderRepoImpl) FindByID(ctx context.Context, orderID string) (*model.Order, error) {
	var rows []*model.Order
	q := client.From(ordersTable).Where(client.Eq("id", orderID)).Page(1, 0)
	if err := r.backend.Query(ctx, q, &rows); err != nil {
		return nil, err
	}
	order, ok := first(rows)
	if !ok {
		return nil, ErrNotFound
	}
	return order, nil
}

func (r *orderRepoImpl) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	var rows []*model.Order
	q := client.From(ordersTable).
		Where(client.Eq("user_id", userID)).
		OrderBy("created_at.desc")
	if err := r.backend.Query(ctx, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *orderRepoImpl) List(ctx context.Context, filter OrderFilter) ([]*model.Order, error) {
	q := client.From(ordersTable).OrderBy("created_at.desc")
	if filter.Status != "" {
		q.Where(client.Eq("status", string(filter.Status)))
	}
	if filter.Email != "" {
		q.Where(client.ILike("customer_email", "*"+filter.Email+"*"))
	}
	if filter.Limit > 0 {
		q.Page(filter.Limit, filter.Offset)
	}

	var rows []*model.Order
	if err := r.backend.Query(ctx, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *orderRepoImpl) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error) {
	var rows []*model.Order
	m := client.Update(ordersTable, map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}, client.Eq("id", orderID))

	if err := r.backend.Mutate(ctx, m, &rows); err != nil {
		return nil, err
	}
	order, ok := first(rows)
	if !ok {
		return nil, ErrNotFound
	}
	return order, nil
}

func (r *orderRepoImpl) UpdatePaymentStatus(ctx context.Context, orderID string, status model.PaymentStatus) error {
	m := client.Update(ordersTable, map[string]interface{}{
		"payment_status": status,
		"updated_at":     time.Now().UTC(),
	}, client.Eq("id", orderID))
	m.Returning = false

	return r.backend.Mutate(ctx, m, nil)
}

func (r *orderRepoImpl) Delete(ctx context.Context, orderID string) error {
	var rows []*model.Order
	m := client.Delete(ordersTable, client.Eq("id", orderID))
	m.Returning = true

	if err := r.backend.Mutate(ctx, m, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}
