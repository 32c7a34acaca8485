package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"techtrack/internal/event"
	"techtrack/internal/model"
	"techtrack/internal/security"
)

const TokenTypeBearer = "bearer"

type AuthService struct {
	users  UserDirectory
	hasher *security.PasswordHasher
	tokens *security.TokenIssuer
	bus    event.Bus

	// dummyDigest is verified against when the username is unknown so both
	// failure paths cost one bcrypt comparison.
	dummyDigest string
}

func NewAuthService(users UserDirectory, hasher *security.PasswordHasher, tokens *security.TokenIssuer, bus event.Bus) (*AuthService, error) {
	dummy, err := hasher.Hash("techtrack-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy digest: %w", err)
	}

	return &AuthService{
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		bus:         bus,
		dummyDigest: dummy,
	}, nil
}

// Login authenticates username/password and mints a bearer token. Unknown
// usernames and wrong passwords both yield model.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username string, password string) (model.Token, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		s.hasher.Verify(password, s.dummyDigest)
		s.publishFailure(ctx, 0, username, "invalid credentials")
		return model.Token{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.Token{}, fmt.Errorf("load user for login: %w", err)
	}

	if !s.hasher.Verify(password, user.HashedPassword) {
		s.publishFailure(ctx, user.ID, username, "invalid credentials")
		return model.Token{}, model.ErrInvalidCredentials
	}

	if !user.IsActive {
		s.publishFailure(ctx, user.ID, username, "inactive user")
		return model.Token{}, model.ErrInactiveUser
	}

	accessToken, err := s.tokens.Issue(user.ID, s.tokens.DefaultTTL())
	if err != nil {
		return model.Token{}, fmt.Errorf("issue token: %w", err)
	}

	s.publish(ctx, event.Event{
		Type:          event.TypeLoginSucceeded,
		ActorID:       user.ID,
		ActorUsername: user.Username,
		Resource:      userResource(user.ID),
	})

	return model.Token{AccessToken: accessToken, TokenType: TokenTypeBearer}, nil
}

// Authenticate resolves a bearer token to a freshly loaded user. Any token
// problem and a deleted user both come back as security.ErrInvalidToken.
func (s *AuthService) Authenticate(ctx context.Context, token string) (model.User, error) {
	subjectID, err := s.tokens.Verify(token)
	if err != nil {
		return model.User{}, security.ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, subjectID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, security.ErrInvalidToken
	}
	if err != nil {
		return model.User{}, fmt.Errorf("load token subject: %w", err)
	}

	return user, nil
}

func (s *AuthService) publishFailure(ctx context.Context, userID int64, username string, reason string) {
	slog.WarnContext(ctx, "login failed", "username", username, "reason", reason)
	s.publish(ctx, event.Event{
		Type:          event.TypeLoginFailed,
		ActorID:       userID,
		ActorUsername: username,
		Reason:        reason,
	})
}

func (s *AuthService) publish(ctx context.Context, e event.Event) {
	if s.bus == nil {
		return
	}
	e.ClientIP = event.ClientIP(ctx)
	s.bus.Publish(e)
}

func userResource(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}
