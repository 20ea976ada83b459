package repository

import (
	"context"
	"errors"

	"setledger/pkg/db/option"

	"gorm.io/gorm"
)

// Repository is the generic persistence surface shared by all services.
// FindOne returns (nil, nil) when no row matches so callers can branch on
// existence without unwrapping gorm errors.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, resourceID string, resource any) error
	BatchCreate(ctx context.Context, resources []*T) error
	Count(ctx context.Context, query *T) (int64, error)
}

type store[T any] struct {
	db *gorm.DB
}

// ProvideStore builds a gorm-backed Repository for the model type T.
func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	if tx == nil {
		return s
	}
	return &store[T]{db: tx}
}

func (s *store[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	var resources []*T
	tx := option.Apply(s.db.WithContext(ctx).Where(query), opts...)
	if err := tx.Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

func (s *store[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	var resource T
	tx := option.Apply(s.db.WithContext(ctx).Where(query), opts...)
	if err := tx.First(&resource).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &resource, nil
}

func (s *store[T]) Create(ctx context.Context, resource *T) error {
	return s.db.WithContext(ctx).Create(resource).Error
}

func (s *store[T]) Update(ctx context.Context, resourceID string, resource any) error {
	var model T
	return s.db.WithContext(ctx).Model(&model).Where("id = ?", resourceID).Updates(resource).Error
}

func (s *store[T]) BatchCreate(ctx context.Context, resources []*T) error {
	if len(resources) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(resources).Error
}

func (s *store[T]) Count(ctx context.Context, query *T) (int64, error) {
	var model T
	var count int64
	if err := s.db.WithContext(ctx).Model(&model).Where(query).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
