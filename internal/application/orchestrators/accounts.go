package orchestrators

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gymdesk/internal/domain/account"

	"github.com/google/uuid"
)

// AccountCredentialStore is the account storage used for signup, login and
// password changes.
type AccountCredentialStore interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
	Count(ctx context.Context) (int, error)
}

// AccountDeps holds dependencies for the account orchestrators.
type AccountDeps struct {
	AccountStore AccountCredentialStore
	Now          func() time.Time // defaults to time.Now
}

func (d AccountDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

var (
	ErrEmailAlreadyExists   = errors.New("an account with this email already exists")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrAccountLocked        = errors.New("account is locked due to too many failed attempts")
	ErrCurrentPasswordWrong = errors.New("current password is incorrect")
	ErrNewPasswordSame      = errors.New("new password must be different from current password")
)

// CreateAccountInput carries input for ExecuteCreateAccount.
type CreateAccountInput struct {
	Email       string
	DisplayName string
	Password    string
	Role        string // empty means member
}

// ExecuteCreateAccount registers a login and returns its id.
// PRE: password has at least account.MinPasswordLength characters
// POST: account stored with a bcrypt hash and a normalized email
// INVARIANT: emails are unique ignoring case
func ExecuteCreateAccount(ctx context.Context, input CreateAccountInput, deps AccountDeps) (string, error) {
	acct := account.Account{
		ID:          uuid.NewString(),
		Email:       account.NormalizeEmail(input.Email),
		DisplayName: strings.TrimSpace(input.DisplayName),
		Role:        cmp.Or(input.Role, account.RoleMember),
		CreatedAt:   deps.now(),
	}
	if err := acct.Validate(); err != nil {
		return "", invalid(err)
	}
	if err := acct.SetPassword(input.Password); err != nil {
		return "", invalid(err)
	}
	if _, err := deps.AccountStore.GetByEmail(ctx, acct.Email); err == nil {
		return "", ErrEmailAlreadyExists
	}
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return "", fmt.Errorf("save account: %w", err)
	}
	slog.Info("account_created", "account_id", acct.ID, "role", acct.Role)
	return acct.ID, nil
}

// ExecuteSeedAdmin creates the first admin on an empty database and does
// nothing once any account exists.
func ExecuteSeedAdmin(ctx context.Context, deps AccountDeps, email, password string) error {
	n, err := deps.AccountStore.Count(ctx)
	if err != nil {
		return fmt.Errorf("count accounts: %w", err)
	}
	if n > 0 {
		return nil
	}
	id, err := ExecuteCreateAccount(ctx, CreateAccountInput{
		Email:       email,
		DisplayName: "Admin",
		Password:    password,
		Role:        account.RoleAdmin,
	}, deps)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	slog.Info("admin_seeded", "account_id", id)
	return nil
}

// LoginInput carries credentials for ExecuteLogin.
type LoginInput struct {
	Email    string
	Password string
}

// ExecuteLogin checks credentials and returns the account to open a session for.
// POST: a failure is counted against the account; success clears the count
// INVARIANT: a locked account is refused even with the right password
func ExecuteLogin(ctx context.Context, input LoginInput, deps AccountDeps) (account.Account, error) {
	email := account.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return account.Account{}, ErrInvalidCredentials
	}
	now := deps.now()

	acct, err := deps.AccountStore.GetByEmail(ctx, email)
	if err != nil {
		slog.Info("login_failed", "reason", "unknown_email")
		return account.Account{}, ErrInvalidCredentials
	}
	if acct.IsLocked(now) {
		slog.Info("login_refused", "account_id", acct.ID, "locked_until", acct.LockedUntil)
		return account.Account{}, ErrAccountLocked
	}

	if acct.CheckPassword(input.Password) != nil {
		locked := acct.LoginFailed(now)
		saveLoginState(ctx, deps, acct)
		slog.Info("login_failed", "account_id", acct.ID, "reason", "wrong_password", "failures", acct.FailedLogins, "locked", locked)
		return account.Account{}, ErrInvalidCredentials
	}

	if acct.FailedLogins > 0 {
		acct.ClearLockout()
		saveLoginState(ctx, deps, acct)
	}
	slog.Info("login_succeeded", "account_id", acct.ID, "role", acct.Role)
	return acct, nil
}

// saveLoginState persists lockout counters. A failed write only weakens
// lockout, so it is logged rather than returned.
func saveLoginState(ctx context.Context, deps AccountDeps, acct account.Account) {
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		slog.Warn("login_state_save_failed", "account_id", acct.ID, "error", err)
	}
}

// ChangePasswordInput carries input for ExecuteChangePassword.
type ChangePasswordInput struct {
	AccountID       string
	CurrentPassword string
	NewPassword     string
}

// ExecuteChangePassword replaces a password after checking the current one.
// PRE: AccountID names an existing account
// POST: new hash stored; any lockout cleared
func ExecuteChangePassword(ctx context.Context, input ChangePasswordInput, deps AccountDeps) error {
	if input.CurrentPassword == "" || input.NewPassword == "" {
		return invalid(account.ErrEmptyPassword)
	}
	acct, err := deps.AccountStore.GetByID(ctx, input.AccountID)
	if err != nil {
		return fmt.Errorf("load account %s: %w", input.AccountID, err)
	}
	if acct.CheckPassword(input.CurrentPassword) != nil {
		return ErrCurrentPasswordWrong
	}
	if input.NewPassword == input.CurrentPassword {
		return invalid(ErrNewPasswordSame)
	}
	if err := acct.SetPassword(input.NewPassword); err != nil {
		return invalid(err)
	}
	acct.ClearLockout()
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	slog.Info("password_changed", "account_id", acct.ID)
	return nil
}
