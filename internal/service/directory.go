package service

import (
	"context"

	"techtrack/internal/model"
)

// UserDirectory is the persistent user store. Reads are exact matches and
// return model.ErrUserNotFound when nothing matches; Create and Update
// return model.ErrDuplicateUser when the store's uniqueness constraint on
// username or email rejects the write.
type UserDirectory interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	Update(ctx context.Context, u model.User) (model.User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, skip int, limit int) ([]model.User, error)
	Count(ctx context.Context) (int, error)
}
