package client

import (
	"context"
	"errors"
	"fmt"

	"academy-storefront/internal/config"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"
)

// --- INTERFACE ---

type CardCharge struct {
	OrderID        string
	Amount         decimal.Decimal
	CardholderName string
	Number         string
	// Expiry is MM/YY as entered on the form.
	Expiry string
	CVC    string
}

type CardChargeResult struct {
	TransactionID string
	Status        string
	Declined      bool
	Message       string
}

type CardGateway interface {
	// Charge submits a one-off sale for settlement.
	Charge(ctx context.Context, charge *CardCharge) (*CardChargeResult, error)
}

// --- IMPLEMENTATION ---

type braintreeClientImpl struct {
	gateway *braintree.Braintree
}

// NewBraintreeClient returns nil when no merchant is configured.
func NewBraintreeClient(cfg *config.Braintree) CardGateway {
	if cfg.MerchantID == "" {
		return nil
	}

	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	gateway := braintree.New(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
	)

	return &braintreeClientImpl{
		gateway: gateway,
	}
}

// --- METHODS ---

func (c *braintreeClientImpl) Charge(ctx context.Context, charge *CardCharge) (*CardChargeResult, error) {
	// braintree expects NewDecimal(unscaled, scale): "50.00" -> NewDecimal(5000, 2)
	cents := charge.Amount.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
	btAmount := braintree.NewDecimal(cents, 2)

	req := &braintree.TransactionRequest{
		Type:    "sale",
		Amount:  btAmount,
		OrderId: charge.OrderID,
		CreditCard: &braintree.CreditCard{
			CardholderName: charge.CardholderName,
			Number:         charge.Number,
			ExpirationDate: charge.Expiry,
			CVV:            charge.CVC,
		},
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: true,
		},
	}

	tx, err := c.gateway.Transaction().Create(ctx, req)
	if err != nil {
		// declines come back as a 422 carrying the rejected transaction
		var btErr *braintree.BraintreeError
		if errors.As(err, &btErr) && btErr.Transaction != nil {
			res := chargeResult(btErr.Transaction)
			res.Declined = true
			if res.Message == "" {
				res.Message = btErr.ErrorMessage
			}
			return res, nil
		}
		return nil, fmt.Errorf("transaction creation failed: %w", err)
	}

	res := chargeResult(tx)
	if tx.Status == braintree.TransactionStatusProcessorDeclined || tx.Status == braintree.TransactionStatusGatewayRejected {
		res.Declined = true
	}
	return res, nil
}

func chargeResult(tx *braintree.Transaction) *CardChargeResult {
	return &CardChargeResult{
		TransactionID: tx.Id,
		Status:        string(tx.Status),
		Message:       tx.ProcessorResponseText,
	}
}
