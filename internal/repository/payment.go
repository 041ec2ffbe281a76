package repository

import (
	"context"

	"academy-storefront/internal/client"
	"academy-storefront/internal/model"
)

const (
	paymentTransactionsTable = "payment_transactions"
	subscriptionPlansTable   = "subscription_plans"
)

type PaymentTransactionRepository interface {
	Create(ctx context.Context, tx *model.PaymentTransaction) error
	ListByOrder(ctx context.Context, orderID string) ([]*model.PaymentTransaction, error)
}

type paymentTransactionRepoImpl struct {
	backend client.BackendClient
}

func NewPaymentTransactionRepository(backend client.BackendClient) PaymentTransactionRepository {
	return &paymentTransactionRepoImpl{backend: backend}
}

func (r *paymentTransactionRepoImpl) Create(ctx context.Context, tx *model.PaymentTransaction) error {
	m := client.Insert(paymentTransactionsTable, tx)
	m.Returning = false
	return r.backend.Mutate(ctx, m, nil)
}

func (r *paymentTransactionRepoImpl) ListByOrder(ctx context.Context, orderID string) ([]*model.PaymentTransaction, error) {
	var txs []*model.PaymentTransaction
	q := client.From(paymentTransactionsTable).
		Where(client.Eq("order_id", orderID)).
		OrderBy("created_at.desc")
	if err := r.backend.Query(ctx, q, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

type SubscriptionPlanRepository interface {
	ListActive(ctx context.Context) ([]*model.SubscriptionPlan, error)
}

type subscriptionPlanRepoImpl struct {
	backend client.BackendClient
}

func NewSubscriptionPlanRepository(backend client.BackendClient) SubscriptionPlanRepository {
	return &subscriptionPlanRepoImpl{backend: backend}
}

func (r *subscriptionPlanRepoImpl) ListActive(ctx context.Context) ([]*model.SubscriptionPlan, error) {
	var plans []*model.SubscriptionPlan
	q := client.From(subscriptionPlansTable).
		Where(client.Eq("is_active", true)).
		OrderBy("sort_order.asc")
	if err := r.backend.Query(ctx, q, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}
