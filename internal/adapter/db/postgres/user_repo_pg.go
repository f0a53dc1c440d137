package postgres

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-records-api/internal/adapter/db/pool"
	"user-records-api/internal/domain/user"
	"user-records-api/pkg/logger"
)

// UserRepoPG implements the Repository interface using PostgreSQL and GORM.
// Every method borrows exactly one pooled connection for its duration.
type UserRepoPG struct {
	pool *pool.Pool  // Bounded connection pool
	log  *zap.Logger // Structured logger for database operations
}

// NewUserRepoPG creates a new instance of UserRepoPG.
func NewUserRepoPG(p *pool.Pool, log *zap.Logger) *UserRepoPG {
	return &UserRepoPG{pool: p, log: log}
}

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID    int64  `gorm:"primaryKey;autoIncrement"` // Unique identifier from the table sequence
	Name  string `gorm:"not null"`                 // User's full name (required)
	Email string `gorm:"not null"`                 // User's email address (required)
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

func (m UserSchema) toDomain() user.User {
	return user.User{
		ID:    m.ID,
		Name:  m.Name,
		Email: m.Email,
	}
}

// List returns every user ordered by ascending id.
func (r *UserRepoPG) List(ctx context.Context) ([]user.User, error) {
	var models []UserSchema
	err := r.pool.WithConn(ctx, func(tx *gorm.DB) error {
		return tx.Order("id ASC").Find(&models).Error
	})
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to list users from db", zap.Error(err))
		return nil, classify("list users", err)
	}

	users := make([]user.User, len(models))
	for i, model := range models {
		users[i] = model.toDomain()
	}
	return users, nil
}

// Create inserts a new user and returns the stored row including its id.
func (r *UserRepoPG) Create(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, errors.New("user cannot be nil")
	}

	model := UserSchema{
		Name:  u.Name,
		Email: u.Email,
	}

	err := r.pool.WithConn(ctx, func(tx *gorm.DB) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to create user in db", zap.Error(err))
		return nil, classify("create user", err)
	}

	logger.WithContext(ctx, r.log).Info("user created in db", zap.Int64("id", model.ID))
	created := model.toDomain()
	return &created, nil
}

// GetByID retrieves a user from the database by their unique ID.
func (r *UserRepoPG) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var model UserSchema
	err := r.pool.WithConn(ctx, func(tx *gorm.DB) error {
		return tx.First(&model, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithContext(ctx, r.log).Debug("user not found", zap.Int64("id", id))
		} else {
			logger.WithContext(ctx, r.log).Error("failed to get user from db", zap.Error(err), zap.Int64("id", id))
		}
		return nil, classify("get user", err)
	}

	found := model.toDomain()
	return &found, nil
}

// Delete removes a user by ID in a single statement. No matching row is
// reported as not found.
func (r *UserRepoPG) Delete(ctx context.Context, id int64) error {
	var affected int64
	err := r.pool.WithConn(ctx, func(tx *gorm.DB) error {
		res := tx.Delete(&UserSchema{}, id)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to delete user in db", zap.Error(err), zap.Int64("id", id))
		return classify("delete user", err)
	}
	if affected == 0 {
		logger.WithContext(ctx, r.log).Debug("user not found for delete", zap.Int64("id", id))
		return errUserNotFound
	}

	logger.WithContext(ctx, r.log).Info("user deleted in db", zap.Int64("id", id))
	return nil
}
