// Package repository declares the storage contracts the service layer depends on.
// internal/repository/sqlite provides the implementation.
package repository

import (
	"context"

	"github.com/sakif/userbase/internal/model"
)

// AccountRepository stores registered accounts.
//
// FindByUsername and FindByID return an error wrapping apperror.ErrNotFound
// when no row matches. Create returns an error wrapping apperror.ErrConflict
// when the username is already taken; in that case nothing is written.
type AccountRepository interface {
	FindByUsername(ctx context.Context, username string) (*model.Account, error)
	FindByID(ctx context.Context, id int64) (*model.Account, error)
	Create(ctx context.Context, username, passwordHash string) (*model.Account, error)
}

// ProfileRepository stores the optional profile attached to an account.
type ProfileRepository interface {
	FindByAccountID(ctx context.Context, accountID int64) (*model.Profile, error)
	Save(ctx context.Context, profile *model.Profile) error
}
