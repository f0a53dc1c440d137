package user

import (
	"context"

	"go.uber.org/zap"

	domain "user-records-api/internal/domain/user"
	pkgerrors "user-records-api/pkg/errors"
	"user-records-api/pkg/logger"
)

// Repository defines the interface for user data access operations.
// It abstracts the data layer so the use case can be tested without a database.
type Repository interface {
	List(ctx context.Context) ([]domain.User, error)                  // List all users ordered by id
	Create(ctx context.Context, u *domain.User) (*domain.User, error) // Create a new user
	GetByID(ctx context.Context, id int64) (*domain.User, error)      // Retrieve user by ID
	Delete(ctx context.Context, id int64) error                       // Delete user by ID
}

// Usecase implements the business logic for user management operations.
// It provides a clean separation between the transport layer and data layer.
type Usecase struct {
	repo Repository  // Repository for data access
	log  *zap.Logger // Logger for structured logging
}

var _ UserUsecase = (*Usecase)(nil)

// New creates a new instance of Usecase with the provided repository and logger.
func New(r Repository, log *zap.Logger) *Usecase {
	return &Usecase{repo: r, log: log}
}

// CreateUser validates the request and stores the user. Email uniqueness is
// left to the store; a unique index surfaces as a constraint violation.
func (uc *Usecase) CreateUser(ctx context.Context, in CreateUserRequest) (*User, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Debug("creating user")

	in, err := ValidateCreate(in)
	if err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, err
	}

	created, err := uc.repo.Create(ctx, &domain.User{
		Name:  in.Name,
		Email: in.Email,
	})
	if err != nil {
		log.Error("failed to create user", zap.Error(err), zap.Stringer("kind", pkgerrors.KindOf(err)))
		return nil, err
	}
	return toDTO(created), nil
}

// GetUser retrieves a user by ID.
func (uc *Usecase) GetUser(ctx context.Context, in GetUserRequest) (*User, error) {
	log := logger.WithContext(ctx, uc.log)

	if in.ID <= 0 {
		log.Warn("get user validation failed", zap.Int64("id", in.ID), zap.String("reason", "invalid id"))
		return nil, pkgerrors.NewValidationError("id", "must be a positive integer")
	}

	u, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		if pkgerrors.KindOf(err) == pkgerrors.KindNotFound {
			log.Debug("user not found", zap.Int64("id", in.ID))
		} else {
			log.Error("failed to get user", zap.Int64("id", in.ID), zap.Error(err))
		}
		return nil, err
	}
	return toDTO(u), nil
}

// DeleteUser removes a user by ID.
func (uc *Usecase) DeleteUser(ctx context.Context, in DeleteUserRequest) error {
	log := logger.WithContext(ctx, uc.log)
	log.Info("deleting user", zap.Int64("id", in.ID))

	if in.ID <= 0 {
		log.Warn("delete user validation failed", zap.Int64("id", in.ID), zap.String("reason", "invalid id"))
		return pkgerrors.NewValidationError("id", "must be a positive integer")
	}

	if err := uc.repo.Delete(ctx, in.ID); err != nil {
		if pkgerrors.KindOf(err) == pkgerrors.KindNotFound {
			log.Debug("user not found for delete", zap.Int64("id", in.ID))
		} else {
			log.Error("failed to delete user", zap.Int64("id", in.ID), zap.Error(err))
		}
		return err
	}
	return nil
}

// ListUsers returns every user ordered by ascending id. An empty store
// yields an empty, non-nil slice.
func (uc *Usecase) ListUsers(ctx context.Context) ([]User, error) {
	domainUsers, err := uc.repo.List(ctx)
	if err != nil {
		logger.WithContext(ctx, uc.log).Error("failed to list users", zap.Error(err))
		return nil, err
	}

	users := make([]User, len(domainUsers))
	for i, du := range domainUsers {
		users[i] = *toDTO(&du)
	}
	return users, nil
}

func toDTO(u *domain.User) *User {
	return &User{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}
