package service

import (
	"context"
	"errors"
	"strings"

	"academy-storefront/internal/checkout"
	"academy-storefront/internal/model"
	"academy-storefront/internal/repository"
	"academy-storefront/internal/session"
)

var ErrInvalidProfile = errors.New("invalid profile")

// ProfileUpdate holds the fields a student may change on their own profile.
// Role and email are not editable here.
type ProfileUpdate struct {
	FullName       string             `json:"full_name"`
	Phone          string             `json:"phone"`
	BillingType    model.CustomerType `json:"billing_type"`
	NationalID     string             `json:"national_id"`
	TaxOffice      string             `json:"tax_office"`
	TaxNumber      string             `json:"tax_number"`
	BillingAddress string             `json:"billing_address"`
}

// FieldErrors maps field names to messages.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	return ErrInvalidProfile.Error()
}

func (e FieldErrors) Unwrap() error {
	return ErrInvalidProfile
}

func (u ProfileUpdate) validate() error {
	errs := FieldErrors{}
	if strings.TrimSpace(u.FullName) == "" {
		errs["full_name"] = "full_name is a required field"
	}
	if u.Phone != "" && !checkout.ValidPhone(u.Phone) {
		errs["phone"] = "phone must be a 10 digit mobile number starting with 5"
	}
	if u.BillingType != "" && u.BillingType != model.CustomerIndividual && u.BillingType != model.CustomerCorporate {
		errs["billing_type"] = "billing_type must be one of [individual corporate]"
	}
	if u.NationalID != "" && !checkout.ValidNationalID(u.NationalID) {
		errs["national_id"] = "national_id must be 11 digits and cannot start with 0"
	}
	if u.TaxNumber != "" && !checkout.ValidTaxNumber(u.TaxNumber) {
		errs["tax_number"] = "tax_number must be 10 or 11 digits"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ProfileService interface {
	Get(ctx context.Context, sc *session.Context) (*model.Profile, error)
	Update(ctx context.Context, sc *session.Context, update ProfileUpdate) (*model.Profile, error)
	Orders(ctx context.Context, sc *session.Context) ([]*model.Order, error)
}

type profileServiceImpl struct {
	profileRepo repository.ProfileRepository
	orderRepo   repository.OrderRepository
	sessions    session.Manager
}

func NewProfileService(
	profileRepo repository.ProfileRepository,
	orderRepo repository.OrderRepository,
	sessions session.Manager,
) ProfileService {
	return &profileServiceImpl{
		profileRepo: profileRepo,
		orderRepo:   orderRepo,
		sessions:    sessions,
	}
}

func (s *profileServiceImpl) Get(ctx context.Context, sc *session.Context) (*model.Profile, error) {
	var profile *model.Profile
	err := s.sessions.WithRefreshRetry(ctx, sc, func(ctx context.Context) error {
		var err error
		profile, err = s.profileRepo.FindByID(ctx, sc.UserID())
		return err
	})
	if err != nil {
		return nil, err
	}
	sc.Profile = profile
	return profile, nil
}

func (s *profileServiceImpl) Update(ctx context.Context, sc *session.Context, update ProfileUpdate) (*model.Profile, error) {
	if err := update.validate(); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"full_name":       strings.TrimSpace(update.FullName),
		"phone":           checkout.DigitsOnly(update.Phone),
		"billing_type":    update.BillingType,
		"national_id":     strings.TrimSpace(update.NationalID),
		"tax_office":      strings.TrimSpace(update.TaxOffice),
		"tax_number":      strings.TrimSpace(update.TaxNumber),
		"billing_address": strings.TrimSpace(update.BillingAddress),
	}
	if update.BillingType == "" {
		delete(fields, "billing_type")
	}

	var profile *model.Profile
	err := s.sessions.WithRefreshRetry(ctx, sc, func(ctx context.Context) error {
		var err error
		profile, err = s.profileRepo.Update(ctx, sc.UserID(), fields)
		return err
	})
	if err != nil {
		return nil, err
	}
	sc.Profile = profile
	return profile, nil
}

func (s *profileServiceImpl) Orders(ctx context.Context, sc *session.Context) ([]*model.Order, error) {
	var orders []*model.Order
	err := s.sessions.WithRefreshRetry(ctx, sc, func(ctx context.Context) error {
		var err error
		orders, err = s.orderRepo.ListByUser(ctx, sc.UserID())
		return err
	})
	return orders, err
}
