package repository

import (
	"context"
	"errors"

	"academy-storefront/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlobRepository is a small key/value table used as the session store.
type BlobRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

type blobRepoImpl struct {
	db *gorm.DB
}

func NewBlobRepository(db *gorm.DB) BlobRepository {
	return &blobRepoImpl{db: db}
}

func (r *blobRepoImpl) Get(ctx context.Context, key string) ([]byte, error) {
	var blob model.StoredBlob
	err := r.db.WithContext(ctx).
		Where("blob_key = ?", key).
		First(&blob).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return blob.Value, nil
}

func (r *blobRepoImpl) Put(ctx context.Context, key string, value []byte) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "blob_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&model.StoredBlob{Key: key, Value: value}).Error
}

func (r *blobRepoImpl) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("blob_key IN ?", keys).
		Delete(&model.StoredBlob{}).Error
}
