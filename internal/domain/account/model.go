// Package account holds gym logins: members who book courses and the staff
// who run them.
package account

import (
	"errors"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Roles. Admins and trainers are staff and book without a membership.
const (
	RoleAdmin   = "admin"
	RoleTrainer = "trainer"
	RoleMember  = "member"
)

// ValidRoles lists every role an account may hold.
var ValidRoles = []string{RoleAdmin, RoleTrainer, RoleMember}

const (
	// MaxFailedLogins consecutive failures lock the account for LockoutDuration.
	MaxFailedLogins = 5
	LockoutDuration = 15 * time.Minute

	MinPasswordLength = 12
	maxEmailLength    = 254 // RFC 5321
	bcryptCost        = 12
)

var (
	ErrEmptyEmail       = errors.New("email cannot be empty")
	ErrInvalidEmail     = errors.New("email must contain '@'")
	ErrEmailTooLong     = errors.New("email cannot exceed 254 characters")
	ErrInvalidRole      = errors.New("role must be one of: admin, trainer, member")
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordTooShort = errors.New("password must be at least 12 characters")
	ErrWrongPassword    = errors.New("incorrect password")
)

// Account is one login. LastActiveAt moves on booking activity, not on login.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	LastActiveAt time.Time
	FailedLogins int
	LockedUntil  time.Time
}

// NormalizeEmail trims surrounding space and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks the email and role.
func (a Account) Validate() error {
	email := strings.TrimSpace(a.Email)
	switch {
	case email == "":
		return ErrEmptyEmail
	case len(email) > maxEmailLength:
		return ErrEmailTooLong
	case !strings.Contains(email, "@"):
		return ErrInvalidEmail
	case !slices.Contains(ValidRoles, a.Role):
		return ErrInvalidRole
	}
	return nil
}

// SetPassword replaces the stored bcrypt hash.
// PRE: plaintext has at least MinPasswordLength characters
func (a *Account) SetPassword(plaintext string) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if len(plaintext) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hash)
	return nil
}

// CheckPassword returns ErrWrongPassword unless plaintext matches the hash.
// An account without a hash never matches.
func (a Account) CheckPassword(plaintext string) error {
	if a.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(plaintext)) != nil {
		return ErrWrongPassword
	}
	return nil
}

// IsLocked reports whether logins are refused at now.
func (a Account) IsLocked(now time.Time) bool {
	return now.Before(a.LockedUntil)
}

// LoginFailed counts a failed attempt and reports whether it locked the account.
// POST: after MaxFailedLogins failures LockedUntil = now + LockoutDuration
func (a *Account) LoginFailed(now time.Time) bool {
	a.FailedLogins++
	if a.FailedLogins < MaxFailedLogins {
		return false
	}
	a.LockedUntil = now.Add(LockoutDuration)
	return true
}

// ClearLockout resets the failure counter and any lock.
func (a *Account) ClearLockout() {
	a.FailedLogins = 0
	a.LockedUntil = time.Time{}
}

// IsAdmin reports whether the account administers the gym.
func (a Account) IsAdmin() bool { return a.Role == RoleAdmin }

// IsElevated reports whether the account is staff.
func (a Account) IsElevated() bool { return IsElevatedRole(a.Role) }

// IsElevatedRole reports whether role is a staff role.
func IsElevatedRole(role string) bool {
	return role == RoleAdmin || role == RoleTrainer
}
