package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"academy-storefront/internal/client"
	"academy-storefront/internal/model"
	"academy-storefront/internal/repository"
)

var (
	ErrProgramNotFound  = errors.New("program not found")
	ErrOrderNotCreated  = errors.New("order was not created")
	ErrPaymentDeclined  = errors.New("payment declined")
	ErrPaymentLinkUnset = errors.New("program has no payment link")
)

type Outcome string

const (
	// OutcomeRedirect sends the browser to an external payment page.
	OutcomeRedirect Outcome = "redirect"
	// OutcomeSuccess shows the confirmation in page.
	OutcomeSuccess Outcome = "success"
)

type SubmitRequest struct {
	ProgramID string
	UserID    string
	Lang      string
	UserAgent string
	Form      Form
}

type SubmitResult struct {
	OrderID       string              `json:"order_id"`
	Outcome       Outcome             `json:"outcome"`
	RedirectURL   string              `json:"redirect_url,omitempty"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	Pricing       DisplayBreakdown    `json:"pricing"`
}

type Quote struct {
	Program *model.Program   `json:"program"`
	Pricing DisplayBreakdown `json:"pricing"`
}

// OrderEvents is notified once an order row exists.
type OrderEvents interface {
	OrderCreated(ctx context.Context, order *model.Order) error
}

type Logger interface {
	Errorf(format string, args ...interface{})
}

type Service interface {
	Quote(ctx context.Context, slug string) (*Quote, error)
	ValidateField(form Form, field, lang string) (*FieldError, error)
	Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error)
}

type serviceImpl struct {
	validator   *Validator
	pricing     Pricing
	programRepo repository.ProgramRepository
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentTransactionRepository
	cards       client.CardGateway
	events      OrderEvents
	logger      Logger
}

// NewService wires the checkout flow. cards and events may be nil.
func NewService(
	validator *Validator,
	pricing Pricing,
	programRepo repository.ProgramRepository,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentTransactionRepository,
	cards client.CardGateway,
	events OrderEvents,
	logger Logger,
) Service {
	return &serviceImpl{
		validator:   validator,
		pricing:     pricing,
		programRepo: programRepo,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		cards:       cards,
		events:      events,
		logger:      logger,
	}
}

func (s *serviceImpl) Quote(ctx context.Context, slug string) (*Quote, error) {
	program, err := published(s.programRepo.FindBySlug(ctx, slug))
	if err != nil {
		return nil, err
	}

	return &Quote{
		Program: program,
		Pricing: s.pricing.Compute(program.Price).Display(s.currency(program)),
	}, nil
}

// published hides drafts from checkout the same way the catalogue does.
func published(program *model.Program, err error) (*model.Program, error) {
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProgramNotFound
		}
		return nil, fmt.Errorf("find program: %w", err)
	}
	if !program.IsPublished {
		return nil, ErrProgramNotFound
	}
	return program, nil
}

func (s *serviceImpl) ValidateField(form Form, field, lang string) (*FieldError, error) {
	return s.validator.ValidateField(form, field, lang)
}

// Submit validates the whole form, inserts exactly one order and decides
// where the client goes next. Nothing is retried; a failed insert must be
// resubmitted by the user.
func (s *serviceImpl) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	if err := s.validator.Validate(req.Form, req.Lang); err != nil {
		return nil, err
	}

	program, err := published(s.programRepo.FindByID(ctx, req.ProgramID))
	if err != nil {
		return nil, err
	}
	if req.Form.PaymentMethod == model.PaymentMethodIyzilink && strings.TrimSpace(program.Iyzilink) == "" {
		return nil, ErrPaymentLinkUnset
	}

	breakdown := s.pricing.Compute(program.Price)
	order := s.buildOrder(req, program, breakdown)

	created, err := s.orderRepo.Create(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if created == nil || created.ID == "" {
		return nil, ErrOrderNotCreated
	}

	result := &SubmitResult{
		OrderID:       created.ID,
		Outcome:       OutcomeSuccess,
		PaymentStatus: created.PaymentStatus,
		Pricing:       breakdown.Display(order.Currency),
	}

	switch {
	case req.Form.PaymentMethod == model.PaymentMethodIyzilink:
		result.Outcome = OutcomeRedirect
		result.RedirectURL = PaymentRedirectURL(program.Iyzilink, created.ID)
	case req.Form.PaymentMethod == model.PaymentMethodCreditCard && s.cards != nil:
		status, err := s.chargeCard(ctx, created, req.Form)
		if err != nil {
			return nil, err
		}
		created.PaymentStatus = status
		result.PaymentStatus = status
	}

	if s.events != nil {
		if err := s.events.OrderCreated(ctx, created); err != nil {
			s.logger.Errorf("record order.created for %s: %v", created.ID, err)
		}
	}

	return result, nil
}

func (s *serviceImpl) buildOrder(req *SubmitRequest, program *model.Program, b Breakdown) *model.Order {
	f := req.Form
	order := &model.Order{
		ProgramID:        program.ID,
		ProgramTitle:     program.Title,
		CustomerName:     strings.TrimSpace(f.FullName),
		CustomerEmail:    strings.TrimSpace(f.Email),
		CustomerPhone:    DigitsOnly(f.Phone),
		BillingType:      f.Customer(),
		InvoiceRequested: f.InvoiceRequested,
		Subtotal:         b.Subtotal,
		TaxAmount:        b.Tax,
		TotalAmount:      b.Total,
		Currency:         s.currency(program),
		PaymentMethod:    f.PaymentMethod,
		PaymentStatus:    model.PaymentStatusPending,
		Status:           model.OrderStatusPending,
		Metadata: map[string]interface{}{
			"customer_type":     f.Customer(),
			"invoice_requested": f.InvoiceRequested,
			"vat_included":      b.VATIncluded,
			"tax_rate":          b.Rate.String(),
			"list_price":        program.Price.String(),
			"source":            "web",
			"user_agent":        req.UserAgent,
			"submitted_at":      time.Now().UTC().Format(time.RFC3339),
		},
	}
	if req.UserID != "" {
		userID := req.UserID
		order.UserID = &userID
	}

	switch {
	case f.needsNationalID():
		order.NationalID = strings.TrimSpace(f.NationalID)
	case f.needsCorporateFields():
		order.TaxOffice = strings.TrimSpace(f.TaxOffice)
		order.TaxNumber = strings.TrimSpace(f.TaxNumber)
		order.BillingAddress = strings.TrimSpace(f.BillingAddress)
	}

	if f.needsCard() {
		number := NormalizeCardNumber(f.CardNumber)
		if len(number) >= 4 {
			order.CardLastFour = number[len(number)-4:]
		}
	}
	return order
}

func (s *serviceImpl) chargeCard(ctx context.Context, order *model.Order, f Form) (model.PaymentStatus, error) {
	res, chargeErr := s.cards.Charge(ctx, &client.CardCharge{
		OrderID:        order.ID,
		Amount:         order.TotalAmount,
		CardholderName: strings.TrimSpace(f.CardName),
		Number:         NormalizeCardNumber(f.CardNumber),
		Expiry:         strings.TrimSpace(f.CardExpiry),
		CVC:            strings.TrimSpace(f.CardCVC),
	})

	tx := &model.PaymentTransaction{
		OrderID:  order.ID,
		Provider: "braintree",
		Amount:   order.TotalAmount,
		Currency: order.Currency,
		Status:   model.PaymentStatusPaid,
	}
	switch {
	case chargeErr != nil:
		tx.Status = model.PaymentStatusFailed
		tx.Message = chargeErr.Error()
	case res.Declined:
		tx.Status = model.PaymentStatusFailed
		tx.ProviderRef = res.TransactionID
		tx.Message = res.Message
	default:
		tx.ProviderRef = res.TransactionID
	}

	if err := s.paymentRepo.Create(ctx, tx); err != nil {
		s.logger.Errorf("record payment transaction for %s: %v", order.ID, err)
	}
	if err := s.orderRepo.UpdatePaymentStatus(ctx, order.ID, tx.Status); err != nil {
		s.logger.Errorf("update payment status for %s: %v", order.ID, err)
	}

	if chargeErr != nil {
		return tx.Status, fmt.Errorf("charge card: %w", chargeErr)
	}
	if res.Declined {
		return tx.Status, fmt.Errorf("%w: %s", ErrPaymentDeclined, res.Message)
	}
	return tx.Status, nil
}

func (s *serviceImpl) currency(program *model.Program) string {
	if program.Currency != "" {
		return program.Currency
	}
	return s.pricing.Currency
}

// PaymentRedirectURL appends the order id to an external payment link.
func PaymentRedirectURL(link, orderID string) string {
	sep := "?"
	if strings.Contains(link, "?") {
		sep = "&"
	}
	return link + sep + "orderId=" + url.QueryEscape(orderID)
}
