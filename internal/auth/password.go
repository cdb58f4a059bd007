// Package auth provides credential hashing, signed session tokens, and the
// cookie-backed session manager built on top of them.
//
// PASSWORD HASHING:
// bcrypt is deliberately slow and salts every hash with fresh random bytes,
// so the same password hashes to a different string each time. The salt and
// cost are embedded in the output:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (2^12 rounds)
//	 version
//
// No separate salt column is needed; the whole string goes into
// accounts.password_hash.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used in production.
const DefaultCost = 12

// MaxPasswordBytes is bcrypt's input limit. Longer inputs would be silently
// truncated by the algorithm, so Hash rejects them instead.
const MaxPasswordBytes = 72

var (
	// ErrPasswordMismatch is returned by Verify when the password is wrong.
	ErrPasswordMismatch = errors.New("auth: invalid password")

	// ErrPasswordTooLong is returned by Hash for passwords over MaxPasswordBytes.
	ErrPasswordTooLong = fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
)

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so that the cost can be injected; tests
// use cost 4 to keep each hash in the millisecond range.
type PasswordService struct {
	cost int

	// dummyHash is verified against when the account does not exist, so
	// "unknown user" and "wrong password" take the same time.
	dummyHash []byte
}

// NewPasswordService creates a PasswordService with DefaultCost.
func NewPasswordService() (*PasswordService, error) {
	return NewPasswordServiceWithCost(DefaultCost)
}

// NewPasswordServiceWithCost creates a PasswordService with a custom cost
// between bcrypt.MinCost (4) and bcrypt.MaxCost (31).
//
// Do NOT use cost 4 in production.
func NewPasswordServiceWithCost(cost int) (*PasswordService, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("timing-equaliser"), cost)
	if err != nil {
		return nil, fmt.Errorf("auth: preparing dummy hash: %w", err)
	}

	return &PasswordService{cost: cost, dummyHash: dummy}, nil
}

// Hash hashes the given plaintext password with bcrypt.
//
// Returns ErrPasswordTooLong for passwords over 72 bytes.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
//
// Returns nil on a match and ErrPasswordMismatch on a mismatch. Any other
// error means the stored hash itself is unusable.
//
// bcrypt.CompareHashAndPassword re-derives the hash with the stored salt and
// compares with subtle.ConstantTimeCompare, so the response time does not
// depend on how many leading bytes matched.
//
// bcrypt only reads the first 72 bytes, so a longer plaintext would match
// the hash of its own prefix. Hash never stores such a password; Verify
// still runs one comparison for equal timing and then reports a mismatch.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if len(plaintext) > MaxPasswordBytes {
		_ = bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext[:MaxPasswordBytes]))
		return ErrPasswordMismatch
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// DummyVerify burns the same amount of work as Verify and always fails.
// Call it when there is no stored hash to compare against.
func (p *PasswordService) DummyVerify(plaintext string) error {
	_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(plaintext))
	return ErrPasswordMismatch
}
