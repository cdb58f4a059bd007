package model

// Profile holds optional personal details for an Account.
//
// The profiles table allows several rows per account, but the application
// only ever reads the first one (lowest id). FullName and Bio are nullable
// columns; NULL is read back as the empty string.
type Profile struct {
	ID        int64  `json:"id"        db:"id"`
	AccountID int64  `json:"accountId" db:"account_id"`
	FullName  string `json:"fullName"  db:"full_name"`
	Bio       string `json:"bio"       db:"bio"`
}

// IsEmpty reports whether the profile carries nothing worth displaying.
func (p *Profile) IsEmpty() bool {
	return p == nil || (p.FullName == "" && p.Bio == "")
}
