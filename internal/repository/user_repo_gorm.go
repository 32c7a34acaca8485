package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"techtrack/internal/model"
)

// GormUserRepository stores users through gorm. It backs the sqlite driver.
type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByID(ctx context.Context, id int64) (model.User, error) {
	return r.first(ctx, "find user by id", "id = ?", id)
}

func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	return r.first(ctx, "find user by username", "username = ?", username)
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return r.first(ctx, "find user by email", "email = ?", email)
}

func (r *GormUserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	err := r.db.WithContext(ctx).Create(&u).Error
	if err != nil {
		return model.User{}, mapGormError(err, "create user")
	}
	return u, nil
}

func (r *GormUserRepository) Update(ctx context.Context, u model.User) (model.User, error) {
	// Select("*") writes zero values too, so flags can be switched off.
	result := r.db.WithContext(ctx).Model(&model.User{ID: u.ID}).Select("*").Omit("ID", "CreatedAt").Updates(&u)
	if result.Error != nil {
		return model.User{}, mapGormError(result.Error, "update user")
	}
	if result.RowsAffected == 0 {
		return model.User{}, model.ErrUserNotFound
	}
	return r.FindByID(ctx, u.ID)
}

func (r *GormUserRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&model.User{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *GormUserRepository) List(ctx context.Context, skip int, limit int) ([]model.User, error) {
	users := make([]model.User, 0)
	err := r.db.WithContext(ctx).Order("id").Offset(skip).Limit(limit).Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *GormUserRepository) Count(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return int(count), nil
}

func (r *GormUserRepository) first(ctx context.Context, op string, query string, arg any) (model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if err != nil {
		return model.User{}, mapGormError(err, op)
	}
	return u, nil
}

func mapGormError(err error, op string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return model.ErrUserNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return model.ErrDuplicateUser
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
