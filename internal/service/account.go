// Package service holds the business rules, independent of HTTP:
//
//	handler (HTTP) -> AccountService -> AccountRepository / ProfileRepository (DB)
//	                                 -> PasswordService (bcrypt)
//
// Every error returned here is either a typed *apperror.AppError, whose
// Message is fit for the end user, or an internal failure the handler must
// not show verbatim.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/userbase/internal/apperror"
	"github.com/sakif/userbase/internal/auth"
	"github.com/sakif/userbase/internal/model"
	"github.com/sakif/userbase/internal/repository"
)

// User-facing messages.
const (
	MsgCredentialsRequired = "Username and password are required."
	MsgPasswordTooLong     = "Password must be 72 bytes or fewer."
	MsgUsernameTaken       = "Username already exists."
	MsgInvalidCredentials  = "Invalid username or password."
	MsgUserNotFound        = "User not found."
)

// AccountService implements registration, login and the profile view.
type AccountService struct {
	accounts  repository.AccountRepository
	profiles  repository.ProfileRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAccountService creates an AccountService with all required dependencies.
func NewAccountService(
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accounts:  accounts,
		profiles:  profiles,
		passwords: passwords,
		logger:    logger,
	}
}

// ProfileView is everything the profile page shows. Profile is nil when the
// account has no profile row.
type ProfileView struct {
	Account *model.Account
	Profile *model.Profile
}

// HasDetails reports whether there is a profile with something to show.
func (v *ProfileView) HasDetails() bool {
	return !v.Profile.IsEmpty()
}

// Register creates an account for username with a bcrypt hash of password.
//
// Errors:
//   - ErrValidation when either field is empty or the password is too long
//   - ErrConflict when the username is taken (no row is written)
func (s *AccountService) Register(ctx context.Context, username, password string) (*model.Account, error) {
	if username == "" || password == "" {
		return nil, apperror.ValidationFailed(missingField(username), MsgCredentialsRequired)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", MsgPasswordTooLong)
		}
		return nil, fmt.Errorf("service/account: hashing password: %w", err)
	}

	account, err := s.accounts.Create(ctx, username, hash)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{Err: apperror.ErrConflict, Message: MsgUsernameTaken, Field: "username"}
		}
		return nil, fmt.Errorf("service/account: creating account %q: %w", username, err)
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.Int64("accountID", account.ID),
		slog.String("username", account.Username),
	)
	return account, nil
}

// Authenticate checks username/password and returns the matching account.
//
// Unknown usernames and wrong passwords produce the same ErrUnauthenticated
// error and take the same time (a dummy bcrypt comparison runs when there is
// no stored hash), so the response does not reveal which usernames exist.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*model.Account, error) {
	invalid := apperror.Unauthenticated(MsgInvalidCredentials)

	if username == "" || password == "" {
		return nil, invalid
	}

	account, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			_ = s.passwords.DummyVerify(password)
			s.logger.InfoContext(ctx, "login rejected", slog.String("username", username), slog.String("reason", "unknown user"))
			return nil, invalid
		}
		return nil, fmt.Errorf("service/account: looking up %q: %w", username, err)
	}

	if err := s.passwords.Verify(account.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			// The stored hash is unusable; treat as a failed login but make
			// sure an operator sees it.
			s.logger.ErrorContext(ctx, "stored password hash unusable",
				slog.Int64("accountID", account.ID),
				slog.String("error", err.Error()),
			)
		}
		s.logger.InfoContext(ctx, "login rejected", slog.String("username", username), slog.String("reason", "bad password"))
		return nil, invalid
	}

	return account, nil
}

// Profile loads the account for username and its first profile, if any.
//
// Returns ErrNotFound ("User not found.") when the account no longer exists,
// e.g. it was removed after the session was issued.
func (s *AccountService) Profile(ctx context.Context, username string) (*ProfileView, error) {
	account, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: MsgUserNotFound}
		}
		return nil, fmt.Errorf("service/account: looking up %q: %w", username, err)
	}

	profile, err := s.profiles.FindByAccountID(ctx, account.ID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/account: loading profile of account %d: %w", account.ID, err)
		}
		profile = nil
	}

	return &ProfileView{Account: account, Profile: profile}, nil
}

// UpdateProfile sets the full name and bio on the account's first profile,
// creating the profile row if the account has none. No HTTP route calls
// this; it backs the operator CLI.
func (s *AccountService) UpdateProfile(ctx context.Context, username, fullName, bio string) (*model.Profile, error) {
	view, err := s.Profile(ctx, username)
	if err != nil {
		return nil, err
	}

	profile := view.Profile
	if profile == nil {
		profile = &model.Profile{AccountID: view.Account.ID}
	}
	profile.FullName = fullName
	profile.Bio = bio

	if err := s.profiles.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("service/account: saving profile of %q: %w", username, err)
	}

	s.logger.InfoContext(ctx, "profile saved",
		slog.Int64("accountID", view.Account.ID),
		slog.Int64("profileID", profile.ID),
	)
	return profile, nil
}

func missingField(username string) string {
	if username == "" {
		return "username"
	}
	return "password"
}
