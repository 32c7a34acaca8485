package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"techtrack/internal/database"
	"techtrack/internal/event"
	"techtrack/internal/model"
	"techtrack/internal/repository"
	"techtrack/internal/security"
	"techtrack/pkg/apierror"
)

func newUserServiceForTest(t *testing.T) (*UserService, *repository.GormUserRepository) {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)

	users := repository.NewGormUserRepository(db.Gorm)
	return NewUserService(users, security.NewPasswordHasher(bcrypt.MinCost), event.NewBus()), users
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestUserServiceCreate(t *testing.T) {
	t.Parallel()

	t.Run("hashes the password and defaults to active", func(t *testing.T) {
		svc, users := newUserServiceForTest(t)

		created, err := svc.Create(context.Background(), model.UserCreate{
			Username: "bob", Email: "bob@x.com", Password: "pw123",
		}, nil)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.True(t, created.IsActive)
		assert.False(t, created.IsSuperuser)

		stored, err := users.FindByUsername(context.Background(), "bob")
		require.NoError(t, err)
		assert.NotEqual(t, "pw123", stored.HashedPassword)
		assert.True(t, security.NewPasswordHasher(bcrypt.MinCost).Verify("pw123", stored.HashedPassword))
	})

	t.Run("explicitly inactive users stay inactive", func(t *testing.T) {
		svc, _ := newUserServiceForTest(t)

		created, err := svc.Create(context.Background(), model.UserCreate{
			Username: "carol", Email: "carol@x.com", Password: "secret", IsActive: boolPtr(false),
		}, nil)
		require.NoError(t, err)
		assert.False(t, created.IsActive)
	})

	t.Run("duplicate email or username leaves the existing record unchanged", func(t *testing.T) {
		svc, users := newUserServiceForTest(t)
		ctx := context.Background()

		original, err := svc.Create(ctx, model.UserCreate{Username: "bob", Email: "bob@x.com", Password: "pw123", FullName: "Bob"}, nil)
		require.NoError(t, err)

		_, err = svc.Create(ctx, model.UserCreate{Username: "robert", Email: "bob@x.com", Password: "other"}, nil)
		require.ErrorIs(t, err, model.ErrDuplicateUser)

		_, err = svc.Create(ctx, model.UserCreate{Username: "bob", Email: "robert@x.com", Password: "other"}, nil)
		require.ErrorIs(t, err, model.ErrDuplicateUser)

		stored, err := users.FindByID(ctx, original.ID)
		require.NoError(t, err)
		assert.Equal(t, "Bob", stored.FullName)
		assert.Equal(t, original.HashedPassword, stored.HashedPassword)

		count, err := users.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("rejects invalid input with field details", func(t *testing.T) {
		svc, _ := newUserServiceForTest(t)

		_, err := svc.Create(context.Background(), model.UserCreate{Username: "b", Email: "not-an-email"}, nil)
		require.Error(t, err)

		var apiErr *apierror.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.HTTPStatus)
		assert.Contains(t, apiErr.Details, "email:")
		assert.Contains(t, apiErr.Details, "password:")
		assert.Contains(t, apiErr.Details, "username:")
	})
}

func TestUserServiceRegisterNeverGrantsSuperuser(t *testing.T) {
	t.Parallel()

	svc, _ := newUserServiceForTest(t)

	created, err := svc.Register(context.Background(), model.UserCreate{
		Username: "mallory", Email: "m@x.com", Password: "pw", IsSuperuser: true, IsActive: boolPtr(false),
	})
	require.NoError(t, err)
	assert.False(t, created.IsSuperuser)
	assert.True(t, created.IsActive)
}

func TestUserServiceAccessRules(t *testing.T) {
	t.Parallel()

	svc, _ := newUserServiceForTest(t)
	ctx := context.Background()

	admin, err := svc.Create(ctx, model.UserCreate{Username: "admin", Email: "admin@x.com", Password: "pw", IsSuperuser: true}, nil)
	require.NoError(t, err)
	bob, err := svc.Create(ctx, model.UserCreate{Username: "bob", Email: "bob@x.com", Password: "pw"}, nil)
	require.NoError(t, err)

	t.Run("users can read themselves", func(t *testing.T) {
		got, err := svc.Get(ctx, bob.ID, bob)
		require.NoError(t, err)
		assert.Equal(t, "bob", got.Username)
	})

	t.Run("regular users cannot read others", func(t *testing.T) {
		_, err := svc.Get(ctx, admin.ID, bob)
		require.ErrorIs(t, err, model.ErrForbidden)
	})

	t.Run("superusers can read anyone", func(t *testing.T) {
		got, err := svc.Get(ctx, bob.ID, admin)
		require.NoError(t, err)
		assert.Equal(t, bob.ID, got.ID)
	})

	t.Run("superusers cannot delete themselves", func(t *testing.T) {
		err := svc.Delete(ctx, admin.ID, admin)

		var apiErr *apierror.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusForbidden, apiErr.HTTPStatus)
	})
}

func TestUserServiceUpdate(t *testing.T) {
	t.Parallel()

	t.Run("update me ignores privilege flags", func(t *testing.T) {
		svc, _ := newUserServiceForTest(t)
		ctx := context.Background()

		bob, err := svc.Create(ctx, model.UserCreate{Username: "bob", Email: "bob@x.com", Password: "pw"}, nil)
		require.NoError(t, err)

		updated, err := svc.UpdateMe(ctx, bob, model.UserUpdate{
			FullName:    strPtr("Bob Builder"),
			City:        strPtr("Lyon"),
			IsSuperuser: boolPtr(true),
			IsActive:    boolPtr(false),
		})
		require.NoError(t, err)
		assert.Equal(t, "Bob Builder", updated.FullName)
		assert.Equal(t, "Lyon", updated.City)
		assert.False(t, updated.IsSuperuser)
		assert.True(t, updated.IsActive)
	})

	t.Run("superuser can deactivate a user", func(t *testing.T) {
		svc, _ := newUserServiceForTest(t)
		ctx := context.Background()

		admin, err := svc.Create(ctx, model.UserCreate{Username: "admin", Email: "admin@x.com", Password: "pw", IsSuperuser: true}, nil)
		require.NoError(t, err)
		bob, err := svc.Create(ctx, model.UserCreate{Username: "bob", Email: "bob@x.com", Password: "pw"}, nil)
		require.NoError(t, err)

		updated, err := svc.Update(ctx, bob.ID, model.UserUpdate{IsActive: boolPtr(false)}, admin)
		require.NoError(t, err)
		assert.False(t, updated.IsActive)
	})

	t.Run("taking another user's email is a duplicate", func(t *testing.T) {
		svc, _ := newUserServiceForTest(t)
		ctx := context.Background()

		_, err := svc.Create(ctx, model.UserCreate{Username: "alice", Email: "alice@x.com", Password: "pw"}, nil)
		require.NoError(t, err)
		bob, err := svc.Create(ctx, model.UserCreate{Username: "bob", Email: "bob@x.com", Password: "pw"}, nil)
		require.NoError(t, err)

		_, err = svc.UpdateMe(ctx, bob, model.UserUpdate{Email: strPtr("alice@x.com")})
		require.ErrorIs(t, err, model.ErrDuplicateUser)

		// Re-submitting one's own email is not a conflict.
		_, err = svc.UpdateMe(ctx, bob, model.UserUpdate{Email: strPtr("bob@x.com")})
		require.NoError(t, err)
	})

	t.Run("username length is checked after trimming", func(t *testing.T) {
		svc, users := newUserServiceForTest(t)
		ctx := context.Background()

		bob, err := svc.Create(ctx, model.UserCreate{Username: "bob", Email: "bob@x.com", Password: "pw"}, nil)
		require.NoError(t, err)

		_, err = svc.UpdateMe(ctx, bob, model.UserUpdate{Username: strPtr("  a  ")})
		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.HTTPStatus)
		assert.Contains(t, apiErr.Details, "username")

		stored, err := users.FindByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, "bob", stored.Username)

		updated, err := svc.UpdateMe(ctx, bob, model.UserUpdate{Username: strPtr("  robert  ")})
		require.NoError(t, err)
		assert.Equal(t, "robert", updated.Username)
	})

	t.Run("password change is hashed", func(t *testing.T) {
		svc, users := newUserServiceForTest(t)
		ctx := context.Background()

		bob, err := svc.Create(ctx, model.UserCreate{Username: "bob", Email: "bob@x.com", Password: "pw"}, nil)
		require.NoError(t, err)

		_, err = svc.UpdateMe(ctx, bob, model.UserUpdate{Password: strPtr("new-password")})
		require.NoError(t, err)

		stored, err := users.FindByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.True(t, security.NewPasswordHasher(bcrypt.MinCost).Verify("new-password", stored.HashedPassword))
	})
}

func TestUserServiceList(t *testing.T) {
	t.Parallel()

	svc, _ := newUserServiceForTest(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob", "carol"} {
		_, err := svc.Create(ctx, model.UserCreate{Username: name, Email: name + "@x.com", Password: "pw"}, nil)
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "bob", page.Users[0].Username)
	assert.Equal(t, 3, page.Total)

	all, err := svc.List(ctx, -5, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, all.Skip)
	assert.Equal(t, DefaultListLimit, all.Limit)
	assert.Len(t, all.Users, 3)
}

func TestEnsureFirstSuperuser(t *testing.T) {
	t.Parallel()

	t.Run("seeds once and is idempotent", func(t *testing.T) {
		svc, users := newUserServiceForTest(t)
		ctx := context.Background()
		creds := model.FirstSuperuser{Username: "admin", Email: "admin@x.com", Password: "changethis"}

		created, err := svc.EnsureFirstSuperuser(ctx, creds)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = svc.EnsureFirstSuperuser(ctx, creds)
		require.NoError(t, err)
		assert.False(t, created)

		admin, err := users.FindByEmail(ctx, "admin@x.com")
		require.NoError(t, err)
		assert.True(t, admin.IsSuperuser)
		assert.True(t, admin.IsActive)

		count, err := users.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("skips when not configured", func(t *testing.T) {
		svc, users := newUserServiceForTest(t)

		created, err := svc.EnsureFirstSuperuser(context.Background(), model.FirstSuperuser{Username: "admin"})
		require.NoError(t, err)
		assert.False(t, created)

		count, err := users.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
