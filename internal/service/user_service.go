package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"techtrack/internal/event"
	"techtrack/internal/model"
	"techtrack/internal/security"
	"techtrack/pkg/apierror"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000

	maxPasswordBytes = 72
)

type UserService struct {
	users  UserDirectory
	hasher *security.PasswordHasher
	bus    event.Bus
	now    func() time.Time
}

func NewUserService(users UserDirectory, hasher *security.PasswordHasher, bus event.Bus) *UserService {
	return &UserService{users: users, hasher: hasher, bus: bus, now: time.Now}
}

// Create stores a new user. Uniqueness is pre-checked to name the clashing
// field, but the store's constraint decides: a concurrent insert still
// surfaces as model.ErrDuplicateUser.
func (s *UserService) Create(ctx context.Context, in model.UserCreate, actor *model.User) (model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if err := validateCreate(in); err != nil {
		return model.User{}, err
	}

	if err := s.ensureAvailable(ctx, 0, in.Email, in.Username); err != nil {
		return model.User{}, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}

	now := s.now().UTC()
	created, err := s.users.Create(ctx, model.User{
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: digest,
		FullName:       in.FullName,
		Position:       in.Position,
		Phone:          in.Phone,
		City:           in.City,
		Specialization: in.Specialization,
		IsActive:       isActive,
		IsSuperuser:    in.IsSuperuser,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return model.User{}, err
	}

	s.publish(ctx, event.TypeUserCreated, actor, created.ID)
	return created, nil
}

// Register is open self-registration: the account is always active and
// never privileged.
func (s *UserService) Register(ctx context.Context, in model.UserCreate) (model.User, error) {
	active := true
	in.IsActive = &active
	in.IsSuperuser = false

	return s.Create(ctx, in, nil)
}

func (s *UserService) Get(ctx context.Context, id int64, actor model.User) (model.User, error) {
	if actor.ID != id && !actor.IsSuperuser {
		return model.User{}, model.ErrForbidden
	}

	return s.users.FindByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, skip int, limit int) (model.UserList, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	users, err := s.users.List(ctx, skip, limit)
	if err != nil {
		return model.UserList{}, err
	}

	total, err := s.users.Count(ctx)
	if err != nil {
		return model.UserList{}, err
	}

	return model.UserList{Users: users, Skip: skip, Limit: limit, Total: total}, nil
}

// Update applies a partial update on behalf of a superuser.
func (s *UserService) Update(ctx context.Context, id int64, in model.UserUpdate, actor model.User) (model.User, error) {
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		in.Username = &username
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		in.Email = &email
	}

	if err := validateUpdate(in); err != nil {
		return model.User{}, err
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}

	var email, username string
	if in.Email != nil && *in.Email != user.Email {
		email = *in.Email
	}
	if in.Username != nil && *in.Username != user.Username {
		username = *in.Username
	}
	if err := s.ensureAvailable(ctx, user.ID, email, username); err != nil {
		return model.User{}, err
	}

	if in.Password != nil && *in.Password != "" {
		digest, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return model.User{}, fmt.Errorf("hash password: %w", err)
		}
		user.HashedPassword = digest
	}

	applyUpdate(&user, in)
	user.UpdatedAt = s.now().UTC()

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return model.User{}, err
	}

	s.publish(ctx, event.TypeUserUpdated, &actor, updated.ID)
	return updated, nil
}

// UpdateMe lets a user edit their own profile; privilege flags are ignored.
func (s *UserService) UpdateMe(ctx context.Context, actor model.User, in model.UserUpdate) (model.User, error) {
	in.IsActive = nil
	in.IsSuperuser = nil

	return s.Update(ctx, actor.ID, in, actor)
}

func (s *UserService) Delete(ctx context.Context, id int64, actor model.User) error {
	if actor.ID == id {
		return apierror.New("FORBIDDEN", "superusers are not allowed to delete themselves", "", http.StatusForbidden)
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, event.TypeUserDeleted, &actor, id)
	return nil
}

// EnsureFirstSuperuser seeds the configured superuser unless a user with its
// email already exists. It reports whether a user was created.
func (s *UserService) EnsureFirstSuperuser(ctx context.Context, creds model.FirstSuperuser) (bool, error) {
	if !creds.Configured() {
		slog.InfoContext(ctx, "first superuser not configured; skipping bootstrap")
		return false, nil
	}

	_, err := s.users.FindByEmail(ctx, creds.Email)
	if err == nil {
		slog.InfoContext(ctx, "first superuser already exists", "email", creds.Email)
		return false, nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return false, fmt.Errorf("look up first superuser: %w", err)
	}

	_, err = s.Create(ctx, model.UserCreate{
		Username:    creds.Username,
		Email:       creds.Email,
		Password:    creds.Password,
		IsSuperuser: true,
	}, nil)
	if errors.Is(err, model.ErrDuplicateUser) {
		// Another instance may have seeded it between the lookup and the insert.
		if _, lookupErr := s.users.FindByEmail(ctx, creds.Email); lookupErr == nil {
			return false, nil
		}
	}
	if err != nil {
		return false, fmt.Errorf("create first superuser: %w", err)
	}

	slog.InfoContext(ctx, "created first superuser", "username", creds.Username, "email", creds.Email)
	return true, nil
}

// ensureAvailable checks email then username, skipping empty values and
// records owned by selfID.
func (s *UserService) ensureAvailable(ctx context.Context, selfID int64, email string, username string) error {
	if email != "" {
		existing, err := s.users.FindByEmail(ctx, email)
		if err == nil && existing.ID != selfID {
			return fmt.Errorf("%w: email %q is taken", model.ErrDuplicateUser, email)
		}
		if err != nil && !errors.Is(err, model.ErrUserNotFound) {
			return err
		}
	}

	if username != "" {
		existing, err := s.users.FindByUsername(ctx, username)
		if err == nil && existing.ID != selfID {
			return fmt.Errorf("%w: username %q is taken", model.ErrDuplicateUser, username)
		}
		if err != nil && !errors.Is(err, model.ErrUserNotFound) {
			return err
		}
	}

	return nil
}

func (s *UserService) publish(ctx context.Context, typ event.Type, actor *model.User, targetID int64) {
	if s.bus == nil {
		return
	}

	e := event.Event{Type: typ, Resource: userResource(targetID), ClientIP: event.ClientIP(ctx)}
	if actor != nil {
		e.ActorID = actor.ID
		e.ActorUsername = actor.Username
	}
	s.bus.Publish(e)
}

func applyUpdate(user *model.User, in model.UserUpdate) {
	if in.Username != nil {
		user.Username = *in.Username
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.FullName != nil {
		user.FullName = *in.FullName
	}
	if in.Position != nil {
		user.Position = *in.Position
	}
	if in.Phone != nil {
		user.Phone = *in.Phone
	}
	if in.City != nil {
		user.City = *in.City
	}
	if in.Specialization != nil {
		user.Specialization = *in.Specialization
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if in.IsSuperuser != nil {
		user.IsSuperuser = *in.IsSuperuser
	}
}

func validateCreate(in model.UserCreate) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.Length(3, 50)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&in.Password, validation.Required, validation.By(passwordFitsBcrypt)),
		validation.Field(&in.FullName, validation.Length(0, 200)),
		validation.Field(&in.Phone, validation.Length(0, 32)),
	)
	return apierror.FromValidation(err)
}

func validateUpdate(in model.UserUpdate) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.By(notBlank), validation.Length(3, 50)),
		validation.Field(&in.Email, validation.By(notBlank), validation.Length(3, 254), is.Email),
		validation.Field(&in.Password, validation.By(passwordFitsBcrypt)),
		validation.Field(&in.FullName, validation.Length(0, 200)),
		validation.Field(&in.Phone, validation.Length(0, 32)),
	)
	return apierror.FromValidation(err)
}

func notBlank(value interface{}) error {
	s, ok := value.(*string)
	if ok && s != nil && strings.TrimSpace(*s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

func passwordFitsBcrypt(value interface{}) error {
	var password string
	switch v := value.(type) {
	case string:
		password = v
	case *string:
		if v == nil {
			return nil
		}
		password = *v
	}

	if len(password) > maxPasswordBytes {
		return fmt.Errorf("must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}
