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

var _ repository.ProfileRepository = (*ProfileStore)(nil)

// ProfileStore reads and writes the profiles table.
type ProfileStore struct {
	conn *sql.DB
}

// FindByAccountID returns the first profile (lowest id) owned by accountID.
// Returns apperror.ErrNotFound if the account has no profile.
func (s *ProfileStore) FindByAccountID(ctx context.Context, accountID int64) (*model.Profile, error) {
	key := strconv.FormatInt(accountID, 10)

	var (
		p        model.Profile
		fullName sql.NullString
		bio      sql.NullString
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, account_id, full_name, bio
		 FROM profiles WHERE account_id = ?
		 ORDER BY id LIMIT 1`,
		accountID,
	).Scan(&p.ID, &p.AccountID, &fullName, &bio)
	if err != nil {
		return nil, wrapQueryErr(err, "profile", key, "getting profile for account "+key)
	}

	p.FullName = fullName.String
	p.Bio = bio.String
	return &p, nil
}

// Save inserts the profile when p.ID is zero and updates it otherwise.
// Empty FullName / Bio are stored as NULL.
//
// Inserting a profile for an account that does not exist fails the foreign
// key and is reported as apperror.ErrNotFound for that account.
func (s *ProfileStore) Save(ctx context.Context, p *model.Profile) error {
	if p.ID == 0 {
		res, err := s.conn.ExecContext(ctx,
			`INSERT INTO profiles (account_id, full_name, bio) VALUES (?, ?, ?)`,
			p.AccountID,
			nullString(p.FullName),
			nullString(p.Bio),
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return apperror.NotFound("account", strconv.FormatInt(p.AccountID, 10))
			}
			return fmt.Errorf("sqlite: inserting profile for account %d: %w", p.AccountID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading id of profile for account %d: %w", p.AccountID, err)
		}
		p.ID = id
		return nil
	}

	res, err := s.conn.ExecContext(ctx,
		`UPDATE profiles SET full_name = ?, bio = ? WHERE id = ?`,
		nullString(p.FullName),
		nullString(p.Bio),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile %d: %w", p.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected for profile %d: %w", p.ID, err)
	}
	if n == 0 {
		return apperror.NotFound("profile", strconv.FormatInt(p.ID, 10))
	}
	return nil
}
