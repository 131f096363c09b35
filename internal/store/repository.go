package store

import (
	"context"
	"errors"

	"openthink/internal/apperr"

	"gorm.io/gorm"
)

// Repository is the CRUD surface shared by every entity table.
type Repository[T any] struct {
	db   *gorm.DB
	name string
}

func NewRepository[T any](db *gorm.DB, name string) *Repository[T] {
	return &Repository[T]{db: db, name: name}
}

// FindByID returns a not-found failure when no row has the id.
func (r *Repository[T]) FindByID(ctx context.Context, id uint) (*T, error) {
	var entity T
	if err := r.db.WithContext(ctx).First(&entity, id).Error; err != nil {
		return nil, r.translate(err)
	}
	return &entity, nil
}

// FindOne returns the first row matching the condition.
func (r *Repository[T]) FindOne(ctx context.Context, query string, args ...interface{}) (*T, error) {
	var entity T
	if err := r.db.WithContext(ctx).Where(query, args...).Take(&entity).Error; err != nil {
		return nil, r.translate(err)
	}
	return &entity, nil
}

func (r *Repository[T]) Exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var count int64
	var entity T
	err := r.db.WithContext(ctx).Model(&entity).Where(query, args...).Count(&count).Error
	return count > 0, err
}

func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Create(entity).Error
}

func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Save(entity).Error
}

func (r *Repository[T]) Delete(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Delete(entity).Error
}

func (r *Repository[T]) translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Wrap(apperr.NotFound(r.name+" not found"), err)
	}
	return err
}
