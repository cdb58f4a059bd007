// Package model defines the data structures used throughout the application.
package model

import "time"

// Account is a registered user.
//
// ID is assigned by the database (INTEGER PRIMARY KEY AUTOINCREMENT), so it only
// ever grows. Username is unique and compared exactly as stored ("Alice" and
// "alice" are two different accounts).
//
// PasswordHash is the full bcrypt output ($2a$<cost>$<salt><digest>). It is
// tagged json:"-" so an Account can never leak its hash through an encoder.
type Account struct {
	ID           int64     `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
