package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	apperrors "usersapi/internal/errors"
	"usersapi/internal/model"
	"usersapi/internal/repository"
)

const userEntity = "User"

// CreateUserInput carries the attributes of a new user.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
}

// UpdateUserInput carries a partial update; nil fields keep their stored value.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *model.Role
}

// UserService exposes domain operations.
type UserService interface {
	FindAll(ctx context.Context, filters repository.Filters) ([]model.User, error)
	FindByID(ctx context.Context, id uint) (*model.User, error)
	Create(ctx context.Context, in CreateUserInput) (*model.User, error)
	// Update shallow-merges in onto the stored user before saving it.
	Update(ctx context.Context, id uint, in UpdateUserInput) (*model.User, error)
	Delete(ctx context.Context, id uint) error
}

// Option configures the user service.
type Option func(*userService)

// WithPasswordCost overrides the bcrypt cost used to hash passwords.
func WithPasswordCost(cost int) Option {
	return func(s *userService) {
		s.passwordCost = cost
	}
}

type userService struct {
	repo         repository.UserRepository
	passwordCost int
}

// NewUserService builds a UserService on top of a repository.
func NewUserService(repo repository.UserRepository, opts ...Option) UserService {
	s := &userService{repo: repo, passwordCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *userService) FindAll(ctx context.Context, filters repository.Filters) ([]model.User, error) {
	users, err := s.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	return users, nil
}

func (s *userService) FindByID(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	if user == nil {
		return nil, &apperrors.NotFoundError{Entity: userEntity, ID: id}
	}
	return user, nil
}

func (s *userService) Create(ctx context.Context, in CreateUserInput) (*model.User, error) {
	if err := checkRole(in.Role); err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, s.saveError(err, user.Email)
	}
	return user, nil
}

func (s *userService) Update(ctx context.Context, id uint, in UpdateUserInput) (*model.User, error) {
	if in.Role != nil {
		if err := checkRole(*in.Role); err != nil {
			return nil, err
		}
	}
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Role != nil {
		user.Role = *in.Role
	}
	if in.Password != nil {
		hash, err := s.hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.repo.Save(ctx, user); err != nil {
		return nil, s.saveError(err, user.Email)
	}
	return user, nil
}

func (s *userService) Delete(ctx context.Context, id uint) error {
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return nil
}

// checkRole rejects roles outside model.Roles before anything is stored.
func checkRole(role model.Role) error {
	if role.Valid() {
		return nil
	}
	return apperrors.NewValidationError(`"role" must be one of [` + strings.Join(model.RoleNames(), ", ") + `]`)
}

func (s *userService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *userService) saveError(err error, email string) error {
	if errors.Is(err, repository.ErrDuplicateKey) {
		return &apperrors.ConflictError{Entity: userEntity, Field: "email", Value: email}
	}
	return fmt.Errorf("save user: %w", err)
}
