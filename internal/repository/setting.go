package repository

import (
	"context"

	"academy-storefront/internal/client"
	"academy-storefront/internal/model"
)

const (
	siteSettingsTable   = "site_settings"
	securityEventsTable = "security_events"
)

type SettingRepository interface {
	Get(ctx context.Context, key string) (*model.SiteSetting, error)
}

type settingRepoImpl struct {
	backend client.BackendClient
}

func NewSettingRepository(backend client.BackendClient) SettingRepository {
	return &settingRepoImpl{backend: backend}
}

func (r *settingRepoImpl) Get(ctx context.Context, key string) (*model.SiteSetting, error) {
	var rows []*model.SiteSetting
	q := client.From(siteSettingsTable).Where(client.Eq("key", key)).Page(1, 0)
	if err := r.backend.Query(ctx, q, &rows); err != nil {
		return nil, err
	}
	setting, ok := first(rows)
	if !ok {
		return nil, ErrNotFound
	}
	return setting, nil
}

type SecurityEventRepository interface {
	Record(ctx context.Context, event *model.SecurityEvent) error
}

type securityEventRepoImpl struct {
	backend client.BackendClient
}

func NewSecurityEventRepository(backend client.BackendClient) SecurityEventRepository {
	return &securityEventRepoImpl{backend: backend}
}

func (r *securityEventRepoImpl) Record(ctx context.Context, event *model.SecurityEvent) error {
	m := client.Insert(securityEventsTable, event)
	m.Returning = false
	return r.backend.Mutate(ctx, m, nil)
}
