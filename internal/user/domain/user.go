package domain

import (
	"errors"
	"time"
)

// Status gates whether a user may authenticate.
type Status string

const (
	StatusActive Status = "active"
	StatusLocked Status = "locked"
)

// User is the platform account the auth core authenticates. Broker trading
// credentials never live here; they are sealed in the vault and referenced
// by id.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Roles        []string
	AccountIDs   []string // trading accounts owned by the user, bound into access tokens
	MFAEnrolled  bool
	MFASeedRef   string // vault secret id of the sealed TOTP seed; empty until enrolled
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks invariant fields before persistence.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("user: id is required")
	}
	if u.Email == "" {
		return errors.New("user: email is required")
	}
	if u.MFAEnrolled && u.MFASeedRef == "" {
		return errors.New("user: mfa enrolled without seed reference")
	}
	return nil
}
