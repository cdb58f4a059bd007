package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/sakif/userbase/internal/apperror"
	"github.com/sakif/userbase/internal/model"
	"github.com/sakif/userbase/internal/repository"
)

// compile-time check that *AccountStore implements repository.AccountRepository
var _ repository.AccountRepository = (*AccountStore)(nil)

const accountColumns = `id, username, password_hash, created_at`

// AccountStore reads and writes the accounts table.
type AccountStore struct {
	conn *sql.DB
}

// Create inserts a new account and returns the stored row.
//
// The id (AUTOINCREMENT) and created_at (DEFAULT CURRENT_TIMESTAMP) are
// assigned by SQLite, so after the INSERT we read the row back by its rowid.
//
// UNIQUENESS:
// Two concurrent registrations for the same username both reach this INSERT.
// SQLite serialises writers and the UNIQUE index on accounts.username rejects
// the second one with SQLITE_CONSTRAINT_UNIQUE, which we translate to
// apperror.ErrConflict. A single INSERT statement is atomic, so a rejected
// attempt leaves no partial row behind.
func (s *AccountStore) Create(ctx context.Context, username, passwordHash string) (*model.Account, error) {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO accounts (username, password_hash) VALUES (?, ?)`,
		username,
		passwordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("account", username)
		}
		return nil, fmt.Errorf("sqlite: inserting account %q: %w", username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading id of account %q: %w", username, err)
	}

	return s.FindByID(ctx, id)
}

// FindByUsername looks an account up by its exact username.
// Returns apperror.ErrNotFound if no account has that username.
func (s *AccountStore) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?`,
		username,
	)

	a, err := scanAccount(row)
	if err != nil {
		return nil, wrapQueryErr(err, "account", username, "getting account "+strconv.Quote(username))
	}
	return a, nil
}

// FindByID looks an account up by its numeric id.
// Returns apperror.ErrNotFound if no account has that id.
func (s *AccountStore) FindByID(ctx context.Context, id int64) (*model.Account, error) {
	key := strconv.FormatInt(id, 10)
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`,
		id,
	)

	a, err := scanAccount(row)
	if err != nil {
		return nil, wrapQueryErr(err, "account", key, "getting account "+key)
	}
	return a, nil
}

func scanAccount(row scanner) (*model.Account, error) {
	var a model.Account
	if err := row.Scan(
		&a.ID,
		&a.Username,
		&a.PasswordHash,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
