package repository

import (
	"context"
	"net/http"
	"time"

	"academy-storefront/internal/client"
	"academy-storefront/internal/model"
)

const profilesTable = "profiles"

type ProfileRepository interface {
	FindByID(ctx context.Context, userID string) (*model.Profile, error)
	Create(ctx context.Context, profile *model.Profile) (*model.Profile, error)
	Update(ctx context.Context, userID string, fields map[string]interface{}) (*model.Profile, error)
}

type profileRepoImpl struct {
	backend client.BackendClient
}

func NewProfileRepository(backend client.BackendClient) ProfileRepository {
	return &profileRepoImpl{
		backend: backend,
	}
}

func (r *profileRepoImpl) FindByID(ctx context.Context, userID string) (*model.Profile, error) {
	var rows []*model.Profile
	q := client.From(profilesTable).Where(client.Eq("id", userID)).Page(1, 0)
	if err := r.backend.Query(ctx, q, &rows); err != nil {
		return nil, err
	}
	profile, ok := first(rows)
	if !ok {
		return nil, ErrNotFound
	}
	return profile, nil
}

func (r *profileRepoImpl) Create(ctx context.Context, profile *model.Profile) (*model.Profile, error) {
	var rows []*model.Profile
	if err := r.backend.Mutate(ctx, client.Insert(profilesTable, profile), &rows); err != nil {
		// the row may already exist, created by a sign-up trigger
		if client.StatusOf(err) == http.StatusConflict {
			return r.FindByID(ctx, profile.ID)
		}
		return nil, err
	}
	created, ok := first(rows)
	if !ok {
		return profile, nil
	}
	return created, nil
}

func (r *profileRepoImpl) Update(ctx context.Context, userID string, fields map[string]interface{}) (*model.Profile, error) {
	patch := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		patch[k] = v
	}
	patch["updated_at"] = time.Now().UTC()

	var rows []*model.Profile
	if err := r.backend.Mutate(ctx, client.Update(profilesTable, patch, client.Eq("id", userID)), &rows); err != nil {
		return nil, err
	}
	profile, ok := first(rows)
	if !ok {
		return nil, ErrNotFound
	}
	return profile, nil
}
