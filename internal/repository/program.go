package repository

import (
	"context"
	"fmt"
	"time"

	"academy-storefront/internal/client"
	"academy-storefront/internal/model"
)

const (
	programsTable        = "programs"
	programFeaturesTable = "program_features"
	programFAQsTable     = "program_faqs"
)

type ProgramRepository interface {
	ListPublished(ctx context.Context) ([]*model.Program, error)
	ListAll(ctx context.Context) ([]*model.Program, error)
	FindBySlug(ctx context.Context, slug string) (*model.Program, error)
	FindByID(ctx context.Context, programID string) (*model.Program, error)
	Features(ctx context.Context, programID string) ([]*model.ProgramFeature, error)
	FAQs(ctx context.Context, programID string) ([]*model.ProgramFAQ, error)
	Create(ctx context.Context, program *model.Program) (*model.Program, error)
	// Update patches the program. With a non-nil expectedUpdatedAt the write
	// only applies if the row still carries that timestamp.
	Update(ctx context.Context, programID string, fields map[string]interface{}, expectedUpdatedAt *time.Time) (*model.Program, error)
	Delete(ctx context.Context, programID string) error
	// Reorder assigns sort_order by position. Each row is written on its own.
	Reorder(ctx context.Context, programIDs []string) error
}

type programRepoImpl struct {
	backend client.BackendClient
}

func NewProgramRepository(backend client.BackendClient) ProgramRepository {
	return &programRepoImpl{
		backend: backend,
	}
}

func (r *programRepoImpl) ListPublished(ctx context.Context) ([]*model.Program, error) {
	var programs []*model.Program
	q := client.From(programsTable).
		Where(client.Eq("is_published", true)).
		OrderBy("sort_order.asc", "created_at.desc")
	if err := r.backend.Query(ctx, q, &programs); err != nil {
		return nil, err
	}
	return programs, nil
}

func (r *programRepoImpl) ListAll(ctx context.Context) ([]*model.Program, error) {
	var programs []*model.Program
	q := client.From(programsTable).OrderBy("sort_order.asc", "created_at.desc")
	if err := r.backend.Query(ctx, q, &programs); err != nil {
		return nil, err
	}
	return programs, nil
}

func (r *programRepoImpl) FindBySlug(ctx context.Context, slug string) (*model.Program, error) {
	return r.findOne(ctx, client.Eq("slug", slug))
}

func (r *programRepoImpl) FindByID(ctx context.Context, programID string) (*model.Program, error) {
	return r.findOne(ctx, client.Eq("id", programID))
}

func (r *programRepoImpl) findOne(ctx context.Context, filter client.Filter) (*model.Program, error) {
	var programs []*model.Program
	q := client.From(programsTable).Where(filter).Page(1, 0)
	if err := r.backend.Query(ctx, q, &programs); err != nil {
		return nil, err
	}
	program, ok := first(programs)
	if !ok {
		return nil, ErrNotFound
	}
	return program, nil
}

func (r *programRepoImpl) Features(ctx context.Context, programID string) ([]*model.ProgramFeature, error) {
	var features []*model.ProgramFeature
	q := client.From(programFeaturesTable).
		Where(client.Eq("program_id", programID)).
		OrderBy("sort_order.asc")
	if err := r.backend.Query(ctx, q, &features); err != nil {
		return nil, err
	}
	return features, nil
}

func (r *programRepoImpl) FAQs(ctx context.Context, programID string) ([]*model.ProgramFAQ, error) {
	var faqs []*model.ProgramFAQ
	q := client.From(programFAQsTable).
		Where(client.Eq("program_id", programID)).
		OrderBy("sort_order.asc")
	if err := r.backend.Query(ctx, q, &faqs); err != nil {
		return nil, err
	}
	return faqs, nil
}

func (r *programRepoImpl) Create(ctx context.Context, program *model.Program) (*model.Program, error) {
	var rows []*model.Program
	if err := r.backend.Mutate(ctx, client.Insert(programsTable, program), &rows); err != nil {
		return nil, err
	}
	created, ok := first(rows)
	if !ok {
		return nil, fmt.Errorf("create program: no row returned")
	}
	return created, nil
}

func (r *programRepoImpl) Update(ctx context.Context, programID string, fields map[string]interface{}, expectedUpdatedAt *time.Time) (*model.Program, error) {
	filters := []client.Filter{client.Eq("id", programID)}
	if expectedUpdatedAt != nil {
		filters = append(filters, client.Eq("updated_at", *expectedUpdatedAt))
	}

	patch := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		patch[k] = v
	}
	patch["updated_at"] = time.Now().UTC()

	var rows []*model.Program
	if err := r.backend.Mutate(ctx, client.Update(programsTable, patch, filters...), &rows); err != nil {
		return nil, err
	}
	updated, ok := first(rows)
	if ok {
		return updated, nil
	}

	if expectedUpdatedAt == nil {
		return nil, ErrNotFound
	}
	// nothing matched: tell a stale write apart from a missing row
	if _, err := r.FindByID(ctx, programID); err != nil {
		return nil, err
	}
	return nil, ErrConflict
}

func (r *programRepoImpl) Delete(ctx context.Context, programID string) error {
	var rows []*model.Program
	m := client.Delete(programsTable, client.Eq("id", programID))
	m.Returning = true

	if err := r.backend.Mutate(ctx, m, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *programRepoImpl) Reorder(ctx context.Context, programIDs []string) error {
	now := time.Now().UTC()
	for i, id := range programIDs {
		m := client.Update(programsTable, map[string]interface{}{
			"sort_order": i,
			"updated_at": now,
		}, client.Eq("id", id))
		m.Returning = false

		if err := r.backend.Mutate(ctx, m, nil); err != nil {
			return fmt.Errorf("reorder program %s: %w", id, err)
		}
	}
	return nil
}
