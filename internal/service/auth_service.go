package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vkamat93/seat-booking-app/internal/model"
	"github.com/vkamat93/seat-booking-app/internal/repository"
	"github.com/vkamat93/seat-booking-app/internal/utils"
)

// AllowList answers which usernames may log in and what their initial
// password is.  Lookups are case sensitive.
type AllowList interface {
	DefaultPassword(username string) (string, bool)
}

// AuthConfig holds token and hashing parameters.
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

// Session is the result of a successful login or password change.
type Session struct {
	User  *model.User
	Token utils.AccessToken
}

// Profile is the current user with the seat they hold, if any.
type Profile struct {
	User *model.User
	Seat *model.SeatView
}

// AuthService implements allow-listed login with auto-created accounts.
// A username present in the allow list but absent from the store is
// created on its first login with its default password and must change
// that password before booking.
type AuthService struct {
	users  repository.UserStore
	seats  repository.SeatStore
	allow  AllowList
	cfg    AuthConfig
	logger *slog.Logger
}

func NewAuthService(users repository.UserStore, seats repository.SeatStore, allow AllowList, cfg AuthConfig, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{users: users, seats: seats, allow: allow, cfg: cfg, logger: logger}
}

// Login authenticates username/password and returns a signed token.
func (a *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	defaultPassword, ok := a.allow.DefaultPassword(username)
	if !ok {
		return nil, ErrNotAllowed
	}

	user, err := a.users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		if password != defaultPassword {
			return nil, ErrInvalidCredentials
		}
		user, err = a.createUser(ctx, username, defaultPassword)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !utils.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return a.session(user)
}

// createUser inserts an allow-listed user.  A concurrent first login that
// won the insert is tolerated by reloading the row.
func (a *AuthService) createUser(ctx context.Context, username, password string) (*model.User, error) {
	hash, err := utils.HashPassword(password, a.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{Username: username, PasswordHash: hash, MustChangePassword: true}
	err = a.users.Create(ctx, u)
	if errors.Is(err, repository.ErrUsernameTaken) {
		return a.users.GetByUsername(ctx, username)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	a.logger.Info("user auto-created", slog.String("username", u.Username), slog.Uint64("user_id", u.ID))
	return u, nil
}

// Me returns the user and, when they hold one, their seat.
func (a *AuthService) Me(ctx context.Context, userID uint64) (*Profile, error) {
	user, err := a.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	p := &Profile{User: user}
	if user.HasSeat() {
		seat, err := a.seats.GetWithOwner(ctx, *user.BookedSeatID)
		if err != nil && !errors.Is(err, repository.ErrSeatNotFound) {
			return nil, fmt.Errorf("load seat: %w", err)
		}
		p.Seat = seat
	}
	return p, nil
}

// ChangePassword replaces the password after verifying the current one,
// clears the must-change flag and returns a fresh token reflecting it.
func (a *AuthService) ChangePassword(ctx context.Context, userID uint64, current, next string) (*Session, error) {
	if current == "" || next == "" {
		return nil, ErrMissingPasswords
	}
	if len(next) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	user, err := a.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !utils.VerifyPassword(user.PasswordHash, current) {
		return nil, ErrWrongPassword
	}

	hash, err := utils.HashPassword(next, a.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := a.users.UpdatePassword(ctx, userID, hash, false); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	user.PasswordHash = hash
	user.MustChangePassword = false
	return a.session(user)
}

func (a *AuthService) session(user *model.User) (*Session, error) {
	tok, err := utils.NewAccessToken(a.cfg.JWTSecret, user.ID, user.Username, user.MustChangePassword, a.cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{User: user, Token: tok}, nil
}
