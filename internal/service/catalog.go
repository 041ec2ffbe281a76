package service

import (
	"context"
	"fmt"

	"academy-storefront/internal/model"
	"academy-storefront/internal/repository"
)

// ProgramDetail is a program page: the program with its features and FAQs.
type ProgramDetail struct {
	*model.Program
	Features []*model.ProgramFeature `json:"features"`
	FAQs     []*model.ProgramFAQ     `json:"faqs"`
}

type CatalogService interface {
	ListPrograms(ctx context.Context) ([]*model.Program, error)
	GetProgram(ctx context.Context, slug string) (*ProgramDetail, error)
	ListPlans(ctx context.Context) ([]*model.SubscriptionPlan, error)
	// Setting reads one site setting; what an anonymous visitor may read is
	// decided by the backend's row policies.
	Setting(ctx context.Context, key string) (*model.SiteSetting, error)
}

type catalogServiceImpl struct {
	programRepo repository.ProgramRepository
	planRepo    repository.SubscriptionPlanRepository
	settingRepo repository.SettingRepository
}

func NewCatalogService(
	programRepo repository.ProgramRepository,
	planRepo repository.SubscriptionPlanRepository,
	settingRepo repository.SettingRepository,
) CatalogService {
	return &catalogServiceImpl{
		programRepo: programRepo,
		planRepo:    planRepo,
		settingRepo: settingRepo,
	}
}

func (s *catalogServiceImpl) ListPrograms(ctx context.Context) ([]*model.Program, error) {
	return s.programRepo.ListPublished(ctx)
}

func (s *catalogServiceImpl) GetProgram(ctx context.Context, slug string) (*ProgramDetail, error) {
	program, err := s.programRepo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !program.IsPublished {
		return nil, repository.ErrNotFound
	}

	features, err := s.programRepo.Features(ctx, program.ID)
	if err != nil {
		return nil, fmt.Errorf("program features: %w", err)
	}
	faqs, err := s.programRepo.FAQs(ctx, program.ID)
	if err != nil {
		return nil, fmt.Errorf("program faqs: %w", err)
	}

	return &ProgramDetail{
		Program:  program,
		Features: features,
		FAQs:     faqs,
	}, nil
}

func (s *catalogServiceImpl) ListPlans(ctx context.Context) ([]*model.SubscriptionPlan, error) {
	return s.planRepo.ListActive(ctx)
}

func (s *catalogServiceImpl) Setting(ctx context.Context, key string) (*model.SiteSetting, error) {
	return s.settingRepo.Get(ctx, key)
}
