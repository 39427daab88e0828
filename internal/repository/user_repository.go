package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"usersapi/internal/model"
)

// UserRepository defines persistence operations.
type UserRepository interface {
	// FindAll returns every user matching filters, ordered by id.
	FindAll(ctx context.Context, filters Filters) ([]model.User, error)
	// FindByID returns nil and no error when the user does not exist.
	FindByID(ctx context.Context, id uint) (*model.User, error)
	// Save inserts a user without an id, otherwise rewrites the stored row.
	Save(ctx context.Context, user *model.User) error
	// Delete removes the user; deleting a missing id is not an error.
	Delete(ctx context.Context, id uint) error
}

// QueryObserver wraps a logical store operation, e.g. to record its latency.
type QueryObserver interface {
	ObserveDB(op string, fn func() error) error
}

// Option configures a gorm-backed repository.
type Option func(*userRepository)

// WithQueryObserver routes every store round-trip through o.
func WithQueryObserver(o QueryObserver) Option {
	return func(r *userRepository) {
		if o != nil {
			r.observer = o
		}
	}
}

type userRepository struct {
	db       *gorm.DB
	observer QueryObserver
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB, opts ...Option) UserRepository {
	r := &userRepository{db: db, observer: passthroughObserver{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *userRepository) FindAll(ctx context.Context, filters Filters) ([]model.User, error) {
	preds, err := buildUserPredicates(filters)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Model(&model.User{})
	if len(preds) > 0 {
		where, args, err := preds.ToSql()
		if err != nil {
			return nil, fmt.Errorf("build user filters: %w", err)
		}
		query = query.Where(where, args...)
	}

	users := make([]model.User, 0)
	err = r.observer.ObserveDB("users.find_all", func() error {
		return query.Order("id ASC").Find(&users).Error
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := r.observer.ObserveDB("users.find_by_id", func() error {
		return r.db.WithContext(ctx).First(&user, id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Save(ctx context.Context, user *model.User) error {
	op := "users.update"
	if user.ID == 0 {
		op = "users.create"
	}
	err := r.observer.ObserveDB(op, func() error {
		if user.ID == 0 {
			return r.db.WithContext(ctx).Create(user).Error
		}
		return r.db.WithContext(ctx).Save(user).Error
	})
	return translateError(err)
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	return r.observer.ObserveDB("users.delete", func() error {
		return r.db.WithContext(ctx).Delete(&model.User{}, id).Error
	})
}

type passthroughObserver struct{}

func (passthroughObserver) ObserveDB(_ string, fn func() error) error {
	return fn()
}
