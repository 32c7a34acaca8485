package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"techtrack/internal/event"
	"techtrack/internal/model"
	"techtrack/internal/repository"
	"techtrack/internal/security"
)

type authFixture struct {
	users   *repository.MockUserDirectory
	hasher  *security.PasswordHasher
	tokens  *security.TokenIssuer
	bus     *event.InMemoryBus
	service *AuthService
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()

	users := &repository.MockUserDirectory{}
	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	tokens, err := security.NewTokenIssuer([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	bus := event.NewBus()

	svc, err := NewAuthService(users, hasher, tokens, bus)
	require.NoError(t, err)

	return authFixture{users: users, hasher: hasher, tokens: tokens, bus: bus, service: svc}
}

func (f authFixture) storedUser(t *testing.T, id int64, username string, password string, active bool) model.User {
	t.Helper()

	digest, err := f.hasher.Hash(password)
	require.NoError(t, err)

	return model.User{ID: id, Username: username, Email: username + "@x.com", HashedPassword: digest, IsActive: active}
}

func TestAuthServiceLogin(t *testing.T) {
	t.Parallel()

	t.Run("unknown username and wrong password fail identically", func(t *testing.T) {
		f := newAuthFixture(t)
		bob := f.storedUser(t, 7, "bob", "pw123", true)
		f.users.On("FindByUsername", mock.Anything, "ghost").Return(model.User{}, model.ErrUserNotFound)
		f.users.On("FindByUsername", mock.Anything, "bob").Return(bob, nil)

		_, unknownErr := f.service.Login(context.Background(), "ghost", "pw123")
		_, wrongErr := f.service.Login(context.Background(), "bob", "nope")

		require.ErrorIs(t, unknownErr, model.ErrInvalidCredentials)
		require.ErrorIs(t, wrongErr, model.ErrInvalidCredentials)
		assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	})

	t.Run("inactive user with correct password is rejected after the password check", func(t *testing.T) {
		f := newAuthFixture(t)
		carol := f.storedUser(t, 9, "carol", "secret", false)
		f.users.On("FindByUsername", mock.Anything, "carol").Return(carol, nil)

		_, err := f.service.Login(context.Background(), "carol", "secret")
		require.ErrorIs(t, err, model.ErrInactiveUser)

		_, err = f.service.Login(context.Background(), "carol", "wrong")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("successful login issues a bearer token for the user id", func(t *testing.T) {
		f := newAuthFixture(t)
		bob := f.storedUser(t, 7, "bob", "pw123", true)
		f.users.On("FindByUsername", mock.Anything, "bob").Return(bob, nil)

		token, err := f.service.Login(context.Background(), "bob", "pw123")
		require.NoError(t, err)
		assert.Equal(t, "bearer", token.TokenType)

		subject, err := f.tokens.Verify(token.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, int64(7), subject)
	})

	t.Run("login outcomes are published with the client address", func(t *testing.T) {
		f := newAuthFixture(t)
		events, unsubscribe := f.bus.Subscribe()
		defer unsubscribe()

		f.users.On("FindByUsername", mock.Anything, "ghost").Return(model.User{}, model.ErrUserNotFound)
		ctx := event.WithClientIP(context.Background(), "10.0.0.1")

		_, err := f.service.Login(ctx, "ghost", "pw")
		require.Error(t, err)

		select {
		case e := <-events:
			assert.Equal(t, event.TypeLoginFailed, e.Type)
			assert.Equal(t, "ghost", e.ActorUsername)
			assert.Equal(t, "10.0.0.1", e.ClientIP)
			assert.Equal(t, "invalid credentials", e.Reason)
			assert.NotEmpty(t, e.ID)
		case <-time.After(time.Second):
			t.Fatal("expected a login event")
		}
	})
}

func TestAuthServiceAuthenticate(t *testing.T) {
	t.Parallel()

	t.Run("resolves a valid token to the stored user", func(t *testing.T) {
		f := newAuthFixture(t)
		bob := f.storedUser(t, 7, "bob", "pw123", true)
		f.users.On("FindByID", mock.Anything, int64(7)).Return(bob, nil)

		token, err := f.tokens.Issue(7, 0)
		require.NoError(t, err)

		user, err := f.service.Authenticate(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "bob", user.Username)
	})

	t.Run("returns inactive users so the guard can decide", func(t *testing.T) {
		f := newAuthFixture(t)
		carol := f.storedUser(t, 9, "carol", "secret", false)
		f.users.On("FindByID", mock.Anything, int64(9)).Return(carol, nil)

		token, err := f.tokens.Issue(9, 0)
		require.NoError(t, err)

		user, err := f.service.Authenticate(context.Background(), token)
		require.NoError(t, err)
		assert.False(t, user.IsActive)
	})

	t.Run("token for a deleted user is invalid", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("FindByID", mock.Anything, int64(42)).Return(model.User{}, model.ErrUserNotFound)

		token, err := f.tokens.Issue(42, 0)
		require.NoError(t, err)

		_, err = f.service.Authenticate(context.Background(), token)
		require.ErrorIs(t, err, security.ErrInvalidToken)
	})

	t.Run("garbage token never reaches the directory", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.service.Authenticate(context.Background(), "not-a-token")
		require.ErrorIs(t, err, security.ErrInvalidToken)
		f.users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})
}
