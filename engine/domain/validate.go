package domain

import "strings"

// ValidatePost checks the minimum a post needs before it can enter the
// pipeline. Posts from the export are otherwise taken as-is.
func ValidatePost(p Post) error {
	if strings.TrimSpace(p.ID) == "" {
		return NewValidationError("id", p.ID, ErrMissingPostID)
	}
	if p.CreatedAt.IsZero() {
		return NewValidationError("created_at", p.ID, ErrBadTimestamp)
	}
	return nil
}

// ValidateAccount checks that an export's account block carries a username,
// which keys the ledger and every index payload.
func ValidateAccount(a Account) error {
	if strings.TrimSpace(a.Username) == "" {
		return NewValidationError("username", a.Username, ErrNoAccount)
	}
	return nil
}
