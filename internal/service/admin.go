package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"academy-storefront/internal/content"
	"academy-storefront/internal/model"
	"academy-storefront/internal/repository"
	"academy-storefront/internal/session"
)

var (
	ErrInvalidStatus = errors.New("invalid order status")
	ErrEmptyOrdering = errors.New("program order is empty")
)

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// OrderList is the admin order table. Amounts are only shown when the
// deployment allows it.
type OrderList struct {
	Orders      []*model.Order
	ShowAmounts bool
}

// OrderDetail is one order with its payment attempts.
type OrderDetail struct {
	Order        *model.Order
	Transactions []*model.PaymentTransaction
	ShowAmounts  bool
}

type AdminOrderService interface {
	GetOrder(ctx context.Context, sc *session.Context, orderID string) (*OrderDetail, error)
	ListOrders(ctx context.Context, sc *session.Context, filter repository.OrderFilter) (*OrderList, error)
	UpdateStatus(ctx context.Context, sc *session.Context, orderID string, status model.OrderStatus) (*model.Order, error)
	DeleteOrder(ctx context.Context, sc *session.Context, orderID string) error
}

type adminOrderServiceImpl struct {
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentTransactionRepository
	sessions    session.Manager
	showAmounts bool
}

func NewAdminOrderService(
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentTransactionRepository,
	sessions session.Manager,
	showAmounts bool,
) AdminOrderService {
	return &adminOrderServiceImpl{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		sessions:    sessions,
		showAmounts: showAmounts,
	}
}

func (s *adminOrderServiceImpl) GetOrder(ctx context.Context, sc *session.Context, orderID string) (*OrderDetail, error) {
	detail := &OrderDetail{ShowAmounts: s.showAmounts}
	err := s.sessions.WithRefreshRetry(ctx, sc, func(ctx context.Context) error {
		order, err := s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		txs, err := s.paymentRepo.ListByOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("payment transactions of %s: %w", orderID, err)
		}
		detail.Order, detail.Transactions = order, txs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *adminOrderServiceImpl) ListOrders(ctx context.Context, sc *session.Context, filter repository.OrderFilter) (*OrderList, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	filter.Limit, filter.Offset = clampList(filter.Limit, filter.Offset)

	var orders []*model.Order
	err := s.sessions.WithRefreshRetry(ctx, sc, func(ctx context.Context) error {
		var err error
		orders, err = s.orderRepo.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &OrderList{Orders: orders, ShowAmounts: s.showAmounts}, nil
}

func (s *adminOrderServiceImpl) UpdateStatus(ctx context.Context, sc *session.Context, orderID string, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	var order *model.Order
	err := s.sessions.WithRefreshRetry(ctx, sc, func(ctx context.Context) error {
		var err error
		order, err = s.orderRepo.UpdateStatus(ctx, orderID, status)
		return err
	})
	return order, err
}

// DeleteOrder removes the order. An expired access token is refreshed once.
func (s *adminOrderServiceImpl) DeleteOrder(ctx context.Context, sc *session.Context, orderID string) error {
	return s.sessions.WithRefreshRetry(ctx, sc, func(ctx context.Context) error {
		return s.orderRepo.Delete(ctx, orderID)
	})
}

func clampList(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ProgramInput is the admin form for a program.
type ProgramInput struct {
	Slug        string          `json:"slug" validate:"required,max=120"`
	Title       string          `json:"title" validate:"required,max=200"`
	Summary     string          `json:"summary" validate:"max=1000"`
	Content     json.RawMessage `json:"content"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency" validate:"omitempty,len=3"`
	Iyzilink    string          `json:"iyzilink" validate:"omitempty,url"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url"`
	StartDate   *time.Time      `json:"start_date"`
	Duration    string          `json:"duration"`
	Schedule    string          `json:"schedule"`
	Capacity    int             `json:"capacity" validate:"gte=0"`
	Outcomes    []string        `json:"outcomes"`
	IsPublished bool            `json:"is_published"`
}

// PostInput is the admin form for a blog post.
type PostInput struct {
	Slug        string          `json:"slug" validate:"required,max=160"`
	Title       string          `json:"title" validate:"required,max=200"`
	Excerpt     string          `json:"excerpt" validate:"max=500"`
	Content     json.RawMessage `json:"content"`
	CoverImage  string          `json:"cover_image" validate:"omitempty,url"`
	CategoryID  *string         `json:"category_id"`
	IsPublished bool            `json:"is_published"`
}

// InputError lists invalid admin form fields.
type InputError struct {
	Fields  map[string]string
	Content content.Errors
}

func (e *InputError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	msg := "invalid input"
	if len(keys) > 0 {
		msg += ": " + strings.Join(keys, ", ")
	}
	if len(e.Content) > 0 {
		msg += "; " + e.Content.Error()
	}
	return msg
}

type AdminContentService interface {
	ListPrograms(ctx context.Context, sc *session.Context) ([]*model.Program, error)
	CreateProgram(ctx context.Context, sc *session.Context, in ProgramInput) (*model.Program, error)
	// UpdateProgram replaces the program. A non-nil expectedUpdatedAt makes
	// the write conditional on the row not having changed since.
	UpdateProgram(ctx context.Context, sc *session.Context, programID string, in ProgramInput, expectedUpdatedAt *time.Time) (*model.Program, error)
	DeleteProgram(ctx context.Context, sc *session.Context, programID string) error
	ReorderPrograms(ctx context.Context, sc *session.Context, programIDs []string) error
	CreatePost(ctx context.Context, sc *session.Context, in PostInput) (*model.BlogPost, error)
	UpdatePost(ctx context.Context, sc *session.Context, postID string, in PostInput) (*model.BlogPost, error)
}

type adminContentServiceImpl struct {
	programRepo repository.ProgramRepository
	blogRepo    repository.BlogRepository
	sessions    session.Manager
	validate    *validator.Validate
	currency    string
}

func NewAdminContentService(
	programRepo repository.ProgramRepository,
	blogRepo repository.BlogRepository,
	sessions session.Manager,
	currency string,
) AdminContentService {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	return &adminContentServiceImpl{
		programRepo: programRepo,
		blogRepo:    blogRepo,
		sessions:    sessions,
		validate:    v,
		currency:    currency,
	}
}

func (s *adminContentServiceImpl) check(in interface{}, slug string, raw json.RawMessage) (content.Document, error) {
	ierr := &InputError{Fields: map[string]string{}}

	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		for _, fe := range verrs {
			ierr.Fields[fe.Field()] = fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		}
	}
	if slug != "" && !slugRe.MatchString(slug) {
		ierr.Fields["slug"] = "must be lowercase words separated by dashes"
	}

	doc, err := content.ParseStrict(raw)
	if err != nil {
		var cerrs content.Errors
		if errors.As(err, &cerrs) {
			ierr.Content = cerrs
		} else {
			ierr.Fields["content"] = err.Error()
		}
	}

	if len(ierr.Fields) > 0 || len(ierr.Content) > 0 {
		return nil, ierr
	}
	return doc, nil
}

func (s *adminContentServiceImpl) ListPrograms(ctx context.Context, sc *session.Context) ([]*model.Program, error) {
	var programs []*model.Program
	err := s.sessions.WithRefreshRetry(ctx, sc, func(ctx context.Context) error {
		var err error
		programs, err = s.programRepo.ListAll(ctx)
		return err
	})
	return programs, err
}

func (s *adminContentServiceImpl) programFields(in ProgramInput, doc content.Document) map[string]interface{} {
	currency := in.Currency
	if currency == "" {
		currency = s.currency
	}
	outcomes := in.Outcomes
	if outcomes == nil {
		outcomes = []string{}
	}
	return map[string]interface{}{
		"slug":         in.Slug,
		"title":        strings.TrimSpace(in.Title),
		"summary":      in.Summary,
		"content":      doc,
		"price":        in.Price,
		"currency":     strings.ToUpper(currency),
		"iyzilink":     in.Iyzilink,
		"image_url":    in.ImageURL,
		"start_date":   in.StartDate,
		"duration":     in.Duration,
		"schedule":     in.Schedule,
		"capacity":     in.Capacity,
		"outcomes":     outcomes,
		"is_published": in.IsPublished,
	}
}

func (s *adminContentServiceImpl) checkProgram(in ProgramInput) (content.Document, error) {
	doc, err := s.check(in, in.Slug, in.Content)
	if err != nil {
		return nil, err
	}
	if in.Price.IsNegative() {
		return nil, &InputError{Fields: map[string]string{"price": "must not be negative"}}
	}
	return doc, nil
}

func (s *adminContentServiceImpl) CreateProgram(ctx context.Context, sc *session.Context, in ProgramInput) (*model.Program, error) {
	doc, err := s.checkProgram(in)
	if err != nil {
		return nil, err
	}

	currency := in.Currency
	if currency == "" {
		currency = s.currency
	}
	program := &model.Program{
		Slug:        in.Slug,
		Title:       strings.TrimSpace(in.Title),
		Summary:     in.Summary,
		Content:     doc,
		Price:       in.Price,
		Currency:    strings.ToUpper(currency),
		Iyzilink:    in.Iyzilink,
		ImageURL:    in.ImageURL,
		StartDate:   in.StartDate,
		Duration:    in.Duration,
		Schedule:    in.Schedule,
		Capacity:    in.Capacity,
		Outcomes:    in.Outcomes,
		IsPublished: in.IsPublished,
	}

	var created *model.Program
	err = s.sessions.WithRefreshRetry(ctx, sc, func(ctx context.Context) error {
		var err error
		created, err = s.programRepo.Create(ctx, program)
		return err
	})
	return created, err
}

func (s *adminContentServiceImpl) UpdateProgram(ctx context.Context, sc *session.Context, programID string, in ProgramInput, expectedUpdatedAt *time.Time) (*model.Program, error) {
	doc, err := s.checkProgram(in)
	if err != nil {
		return nil, err
	}

	var updated *model.Program
	err = s.sessions.WithRefreshRetry(ctx, sc, func(ctx context.Context) error {
		var err error
		updated, err = s.programRepo.Update(ctx, programID, s.programFields(in, doc), expectedUpdatedAt)
		return err
	})
	return updated, err
}

func (s *adminContentServiceImpl) DeleteProgram(ctx context.Context, sc *session.Context, programID string) error {
	return s.sessions.WithRefreshRetry(ctx, sc, func(ctx context.Context) error {
		return s.programRepo.Delete(ctx, programID)
	})
}

// ReorderPrograms writes sort_order from the given sequence. Concurrent
// reorders are not coordinated; the last one to write a row wins.
func (s *adminContentServiceImpl) ReorderPrograms(ctx context.Context, sc *session.Context, programIDs []string) error {
	if len(programIDs) == 0 {
		return ErrEmptyOrdering
	}
	seen := make(map[string]bool, len(programIDs))
	for _, id := range programIDs {
		if id == "" || seen[id] {
			return &InputError{Fields: map[string]string{"ids": "must be distinct program ids"}}
		}
		seen[id] = true
	}

	return s.sessions.WithRefreshRetry(ctx, sc, func(ctx context.Context) error {
		return s.programRepo.Reorder(ctx, programIDs)
	})
}

const autoExcerptLen = 200

// postExcerpt falls back to the start of the post body when no excerpt was given.
func postExcerpt(excerpt string, doc content.Document) string {
	if excerpt = strings.TrimSpace(excerpt); excerpt != "" {
		return excerpt
	}
	text := []rune(strings.Join(strings.Fields(doc.PlainText()), " "))
	if len(text) <= autoExcerptLen {
		return string(text)
	}
	return strings.TrimSpace(string(text[:autoExcerptLen])) + "..."
}

func (s *adminContentServiceImpl) postFields(in PostInput, doc content.Document, now time.Time) map[string]interface{} {
	fields := map[string]interface{}{
		"slug":         in.Slug,
		"title":        strings.TrimSpace(in.Title),
		"excerpt":      postExcerpt(in.Excerpt, doc),
		"content":      doc,
		"cover_image":  in.CoverImage,
		"category_id":  in.CategoryID,
		"is_published": in.IsPublished,
	}
	if in.IsPublished {
		fields["published_at"] = now.UTC()
	}
	return fields
}

func (s *adminContentServiceImpl) CreatePost(ctx context.Context, sc *session.Context, in PostInput) (*model.BlogPost, error) {
	doc, err := s.check(in, in.Slug, in.Content)
	if err != nil {
		return nil, err
	}

	post := &model.BlogPost{
		Slug:        in.Slug,
		Title:       strings.TrimSpace(in.Title),
		Excerpt:     postExcerpt(in.Excerpt, doc),
		Content:     doc,
		CoverImage:  in.CoverImage,
		CategoryID:  in.CategoryID,
		IsPublished: in.IsPublished,
	}
	if in.IsPublished {
		now := time.Now().UTC()
		post.PublishedAt = &now
	}

	var created *model.BlogPost
	err = s.sessions.WithRefreshRetry(ctx, sc, func(ctx context.Context) error {
		var err error
		created, err = s.blogRepo.Create(ctx, post)
		return err
	})
	return created, err
}

// UpdatePost replaces the post. Publishing an already published post keeps
// its original publication time.
func (s *adminContentServiceImpl) UpdatePost(ctx context.Context, sc *session.Context, postID string, in PostInput) (*model.BlogPost, error) {
	doc, err := s.check(in, in.Slug, in.Content)
	if err != nil {
		return nil, err
	}

	var updated *model.BlogPost
	err = s.sessions.WithRefreshRetry(ctx, sc, func(ctx context.Context) error {
		current, err := s.blogRepo.FindByID(ctx, postID)
		if err != nil {
			return err
		}
		fields := s.postFields(in, doc, time.Now())
		if current.PublishedAt != nil {
			delete(fields, "published_at")
		}
		updated, err = s.blogRepo.Update(ctx, postID, fields)
		return err
	})
	return updated, err
}
