package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy-storefront/internal/client"
	"academy-storefront/internal/model"
	"academy-storefront/internal/repository"
)

type fakeProgramRepo struct {
	repository.ProgramRepository
	programs map[string]*model.Program
}

func (f *fakeProgramRepo) FindByID(_ context.Context, id string) (*model.Program, error) {
	if p, ok := f.programs[id]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeProgramRepo) FindBySlug(_ context.Context, slug string) (*model.Program, error) {
	for _, p := range f.programs {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeOrderRepo struct {
	repository.OrderRepository
	created       []*model.Order
	createErr     error
	returnNil     bool
	paymentStatus map[string]model.PaymentStatus
}

func (f *fakeOrderRepo) Create(_ context.Context, order *model.Order) (*model.Order, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.returnNil {
		return nil, nil
	}
	stored := *order
	stored.ID = fmt.Sprintf("order-%d", len(f.created)+1)
	f.created = append(f.created, &stored)
	return &stored, nil
}

func (f *fakeOrderRepo) UpdatePaymentStatus(_ context.Context, id string, status model.PaymentStatus) error {
	if f.paymentStatus == nil {
		f.paymentStatus = map[string]model.PaymentStatus{}
	}
	f.paymentStatus[id] = status
	return nil
}

type fakePaymentRepo struct {
	repository.PaymentTransactionRepository
	txs []*model.PaymentTransaction
}

func (f *fakePaymentRepo) Create(_ context.Context, tx *model.PaymentTransaction) error {
	f.txs = append(f.txs, tx)
	return nil
}

type fakeGateway struct {
	result *client.CardChargeResult
	err    error
	got    *client.CardCharge
}

func (f *fakeGateway) Charge(_ context.Context, charge *client.CardCharge) (*client.CardChargeResult, error) {
	f.got = charge
	return f.result, f.err
}

type fakeEvents struct {
	orders []*model.Order
	err    error
}

func (f *fakeEvents) OrderCreated(_ context.Context, order *model.Order) error {
	f.orders = append(f.orders, order)
	return f.err
}

type nopLogger struct{}

func (nopLogger) Errorf(string, ...interface{}) {}

type serviceFixture struct {
	svc      Service
	orders   *fakeOrderRepo
	payments *fakePaymentRepo
	events   *fakeEvents
}

func newServiceFixture(cards client.CardGateway) *serviceFixture {
	programs := &fakeProgramRepo{programs: map[string]*model.Program{
		"p1": {
			ID:          "p1",
			Slug:        "go-bootcamp",
			Title:       "Go Bootcamp",
			Price:       decimal.NewFromInt(1200),
			Currency:    "TRY",
			Iyzilink:    "https://iyzi.link/AB12",
			IsPublished: true,
		},
		"p2": {
			ID:          "p2",
			Slug:        "no-link",
			Title:       "No Link",
			Price:       decimal.NewFromInt(500),
			IsPublished: true,
		},
		"p3": {
			ID:       "p3",
			Slug:     "draft",
			Title:    "Draft",
			Price:    decimal.NewFromInt(900),
			Iyzilink: "https://iyzi.link/DR4F",
		},
	}}
	f := &serviceFixture{
		orders:   &fakeOrderRepo{},
		payments: &fakePaymentRepo{},
		events:   &fakeEvents{},
	}
	pricing := Pricing{Rate: decimal.NewFromInt(20), VATIncluded: true, Currency: "TRY"}
	f.svc = NewService(NewValidator(), pricing, programs, f.orders, f.payments, cards, f.events, nopLogger{})
	return f
}

func cardForm() Form {
	form := validForm()
	form.PaymentMethod = model.PaymentMethodCreditCard
	form.CardName = "Ada Lovelace"
	form.CardNumber = "4111 1111 1111 1234"
	form.CardExpiry = "12/29"
	form.CardCVC = "123"
	return form
}

func TestQuote(t *testing.T) {
	f := newServiceFixture(nil)

	q, err := f.svc.Quote(context.Background(), "go-bootcamp")
	require.NoError(t, err)
	assert.Equal(t, "p1", q.Program.ID)
	assert.Equal(t, "1000.00", q.Pricing.Subtotal)
	assert.Equal(t, "200.00", q.Pricing.Tax)
	assert.Equal(t, "1200.00", q.Pricing.Total)

	_, err = f.svc.Quote(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProgramNotFound)

	_, err = f.svc.Quote(context.Background(), "draft")
	assert.ErrorIs(t, err, ErrProgramNotFound)
}

func TestSubmitIyzilinkRedirects(t *testing.T) {
	f := newServiceFixture(nil)
	form := validForm()
	form.PaymentMethod = model.PaymentMethodIyzilink

	res, err := f.svc.Submit(context.Background(), &SubmitRequest{ProgramID: "p1", UserID: "u1", Form: form})
	require.NoError(t, err)

	assert.Equal(t, OutcomeRedirect, res.Outcome)
	assert.Equal(t, "https://iyzi.link/AB12?orderId=order-1", res.RedirectURL)
	require.Len(t, f.orders.created, 1)

	order := f.orders.created[0]
	assert.Equal(t, "5551234567", order.CustomerPhone)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, model.CustomerIndividual, order.BillingType)
	require.NotNil(t, order.UserID)
	assert.Equal(t, "u1", *order.UserID)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(1200)))
	assert.Len(t, f.events.orders, 1)
}

func TestSubmitIyzilinkWithoutLink(t *testing.T) {
	f := newServiceFixture(nil)
	form := validForm()
	form.PaymentMethod = model.PaymentMethodIyzilink

	_, err := f.svc.Submit(context.Background(), &SubmitRequest{ProgramID: "p2", Form: form})
	assert.ErrorIs(t, err, ErrPaymentLinkUnset)
	assert.Empty(t, f.orders.created)
}

func TestSubmitBankTransferSucceedsInPage(t *testing.T) {
	f := newServiceFixture(nil)
	form := validForm()
	form.CustomerType = model.CustomerCorporate
	form.InvoiceRequested = true
	form.TaxOffice = "Kadıköy"
	form.TaxNumber = "1234567890"
	form.BillingAddress = "Moda Cd. 1"
	form.NationalID = "12345678901"

	res, err := f.svc.Submit(context.Background(), &SubmitRequest{ProgramID: "p2", Form: form})
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Empty(t, res.RedirectURL)
	assert.Equal(t, "TRY", res.Pricing.Currency)

	order := f.orders.created[0]
	assert.Nil(t, order.UserID)
	assert.Equal(t, "1234567890", order.TaxNumber)
	assert.Empty(t, order.NationalID)
}

func TestSubmitNeverSucceedsWithoutOrderRow(t *testing.T) {
	tests := []struct {
		name    string
		repo    *fakeOrderRepo
		wantErr error
	}{
		{"insert fails", &fakeOrderRepo{createErr: errors.New("boom")}, nil},
		{"no row returned", &fakeOrderRepo{returnNil: true}, ErrOrderNotCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(nil)
			impl := f.svc.(*serviceImpl)
			impl.orderRepo = tt.repo

			res, err := f.svc.Submit(context.Background(), &SubmitRequest{ProgramID: "p1", Form: validForm()})
			require.Error(t, err)
			assert.Nil(t, res)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Empty(t, f.events.orders)
		})
	}
}

func TestSubmitInvalidFormCreatesNothing(t *testing.T) {
	f := newServiceFixture(nil)
	form := validForm()
	form.Consent = false

	_, err := f.svc.Submit(context.Background(), &SubmitRequest{ProgramID: "p1", Form: form})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, f.orders.created)
}

func TestSubmitUnknownProgram(t *testing.T) {
	for _, id := range []string{"nope", "p3"} {
		f := newServiceFixture(nil)
		_, err := f.svc.Submit(context.Background(), &SubmitRequest{ProgramID: id, Form: validForm()})
		assert.ErrorIs(t, err, ErrProgramNotFound, id)
		assert.Empty(t, f.orders.created, id)
	}
}

func TestSubmitCardCharge(t *testing.T) {
	t.Run("paid", func(t *testing.T) {
		gw := &fakeGateway{result: &client.CardChargeResult{TransactionID: "tx1", Status: "submitted_for_settlement"}}
		f := newServiceFixture(gw)

		res, err := f.svc.Submit(context.Background(), &SubmitRequest{ProgramID: "p1", Form: cardForm()})
		require.NoError(t, err)

		assert.Equal(t, model.PaymentStatusPaid, res.PaymentStatus)
		assert.Equal(t, "4111111111111234", gw.got.Number)
		assert.True(t, gw.got.Amount.Equal(decimal.NewFromInt(1200)))
		assert.Equal(t, "1234", f.orders.created[0].CardLastFour)
		require.Len(t, f.payments.txs, 1)
		assert.Equal(t, "tx1", f.payments.txs[0].ProviderRef)
		assert.Equal(t, model.PaymentStatusPaid, f.orders.paymentStatus["order-1"])
	})

	t.Run("declined", func(t *testing.T) {
		gw := &fakeGateway{result: &client.CardChargeResult{TransactionID: "tx2", Declined: true, Message: "Do Not Honor"}}
		f := newServiceFixture(gw)

		_, err := f.svc.Submit(context.Background(), &SubmitRequest{ProgramID: "p1", Form: cardForm()})
		assert.ErrorIs(t, err, ErrPaymentDeclined)
		assert.Equal(t, model.PaymentStatusFailed, f.orders.paymentStatus["order-1"])
		require.Len(t, f.payments.txs, 1)
		assert.Equal(t, "Do Not Honor", f.payments.txs[0].Message)
	})

	t.Run("without gateway", func(t *testing.T) {
		f := newServiceFixture(nil)
		res, err := f.svc.Submit(context.Background(), &SubmitRequest{ProgramID: "p1", Form: cardForm()})
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusPending, res.PaymentStatus)
		assert.Empty(t, f.payments.txs)
	})
}

func TestSubmitIgnoresEventFailure(t *testing.T) {
	f := newServiceFixture(nil)
	f.events.err = errors.New("outbox down")

	res, err := f.svc.Submit(context.Background(), &SubmitRequest{ProgramID: "p1", Form: validForm()})
	require.NoError(t, err)
	assert.Equal(t, "order-1", res.OrderID)
}

func TestPaymentRedirectURL(t *testing.T) {
	assert.Equal(t, "https://pay.example/x?orderId=o1", PaymentRedirectURL("https://pay.example/x", "o1"))
	assert.Equal(t, "https://pay.example/x?a=1&orderId=o1", PaymentRedirectURL("https://pay.example/x?a=1", "o1"))
}
