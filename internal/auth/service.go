// Package auth registers accounts, issues session tokens and resolves the
// account behind a bearer token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kwccc073/vuetify-shop-back/internal/account"
	"github.com/kwccc073/vuetify-shop-back/internal/security"
	"github.com/kwccc073/vuetify-shop-back/internal/validation"
)

var (
	ErrAccountNotFound = errors.New("account does not exist")
	ErrInvalidPassword = errors.New("wrong password")
	ErrInvalidSession  = errors.New("invalid session")
	ErrSessionExpired  = errors.New("session expired")
	ErrForbidden       = errors.New("permission denied")
)

type Service struct {
	accounts  account.Store
	hasher    *security.Hasher
	signer    *security.Signer
	validator *validation.Validator
	attempts  int
	nowFunc   func() time.Time
}

func NewService(accounts account.Store, hasher *security.Hasher, signer *security.Signer, v *validation.Validator) (*Service, error) {
	if accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if hasher == nil || signer == nil {
		return nil, fmt.Errorf("hasher and signer are required")
	}
	if v == nil {
		v = validation.New()
	}
	return &Service{
		accounts:  accounts,
		hasher:    hasher,
		signer:    signer,
		validator: v,
		attempts:  account.DefaultAttempts,
		nowFunc:   time.Now,
	}, nil
}

func (s *Service) Register(ctx context.Context, in account.Registration) (account.Account, error) {
	in.Normalize()
	if err := in.Validate(s.validator); err != nil {
		return account.Account{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return account.Account{}, err
	}
	return s.accounts.Create(ctx, account.Account{
		Handle:       in.Handle,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         account.RoleUser,
	})
}

type Credentials struct {
	Handle   string `json:"account" validate:"required"`
	Password string `json:"password" validate:"required"`
}

var credentialMessages = validation.Messages{
	"account":  "account is required",
	"password": "password is required",
}

type LoginResult struct {
	Token   string
	Account account.Account
}

func (s *Service) Login(ctx context.Context, in Credentials) (LoginResult, error) {
	in.Handle = strings.TrimSpace(in.Handle)
	if err := s.validator.Struct(in, credentialMessages); err != nil {
		return LoginResult{}, err
	}

	acc, err := s.accounts.GetByHandle(ctx, in.Handle)
	if errors.Is(err, account.ErrNotFound) {
		return LoginResult{}, ErrAccountNotFound
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("load account: %w", err)
	}
	if !s.hasher.Verify(in.Password, acc.PasswordHash) {
		return LoginResult{}, ErrInvalidPassword
	}

	token, err := s.signer.Sign(acc.ID)
	if err != nil {
		return LoginResult{}, err
	}
	saved, err := account.Mutate(ctx, s.accounts, acc, s.attempts, func(a *account.Account) error {
		a.Tokens = append(a.Tokens, token)
		return nil
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("store session: %w", err)
	}
	return LoginResult{Token: token, Account: saved}, nil
}

// Authenticate resolves the account owning token. Expired tokens are accepted
// only when allowExpired is set, which is the case for rotation and logout.
func (s *Service) Authenticate(ctx context.Context, token string, allowExpired bool) (account.Account, error) {
	claims, err := s.signer.Decode(token)
	if err != nil {
		return account.Account{}, ErrInvalidSession
	}
	if !allowExpired && claims.Expired(s.nowFunc()) {
		return account.Account{}, ErrSessionExpired
	}
	acc, err := s.accounts.GetByIDWithToken(ctx, claims.AccountID, token)
	if errors.Is(err, account.ErrNotFound) {
		return account.Account{}, ErrInvalidSession
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("load session account: %w", err)
	}
	return acc, nil
}

// Rotate replaces oldToken with a fresh token at the same position in the
// account's token list.
func (s *Service) Rotate(ctx context.Context, acc account.Account, oldToken string) (string, error) {
	token, err := s.signer.Sign(acc.ID)
	if err != nil {
		return "", err
	}
	_, err = account.Mutate(ctx, s.accounts, acc, s.attempts, func(a *account.Account) error {
		idx := a.TokenIndex(oldToken)
		if idx < 0 {
			return ErrInvalidSession
		}
		a.Tokens[idx] = token
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Logout revokes token only; other sessions of the account stay valid.
func (s *Service) Logout(ctx context.Context, acc account.Account, token string) error {
	_, err := account.Mutate(ctx, s.accounts, acc, s.attempts, func(a *account.Account) error {
		idx := a.TokenIndex(token)
		if idx < 0 {
			return ErrInvalidSession
		}
		a.Tokens = append(a.Tokens[:idx], a.Tokens[idx+1:]...)
		return nil
	})
	return err
}

type PasswordChange struct {
	Current string `json:"current_password" validate:"required"`
	Next    string `json:"new_password" validate:"required,min=4,max=20"`
}

var passwordMessages = validation.Messages{
	"current_password": "current password is required",
	"new_password":     "new password must be 4 to 20 characters",
}

// ChangePassword re-hashes the new password and keeps only the calling
// session alive.
func (s *Service) ChangePassword(ctx context.Context, acc account.Account, token string, in PasswordChange) error {
	if err := s.validator.Struct(in, passwordMessages); err != nil {
		return err
	}
	if !s.hasher.Verify(in.Current, acc.PasswordHash) {
		return ErrInvalidPassword
	}
	hash, err := s.hasher.Hash(in.Next)
	if err != nil {
		return err
	}
	_, err = account.Mutate(ctx, s.accounts, acc, s.attempts, func(a *account.Account) error {
		if a.TokenIndex(token) < 0 {
			return ErrInvalidSession
		}
		a.PasswordHash = hash
		a.Tokens = []string{token}
		return nil
	})
	return err
}

func RequireAdmin(acc account.Account) error {
	if !acc.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// EnsureAdmin creates an ADMIN account named handle unless one with that
// handle already exists. It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, handle, password, email string) (bool, error) {
	if _, err := s.accounts.GetByHandle(ctx, handle); err == nil {
		return false, nil
	} else if !errors.Is(err, account.ErrNotFound) {
		return false, fmt.Errorf("check bootstrap account: %w", err)
	}

	in := account.Registration{Handle: handle, Password: password, Email: email}
	in.Normalize()
	if err := in.Validate(s.validator); err != nil {
		return false, fmt.Errorf("bootstrap account: %w", err)
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return false, err
	}
	if _, err := s.accounts.Create(ctx, account.Account{
		Handle:       in.Handle,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         account.RoleAdmin,
	}); err != nil {
		return false, fmt.Errorf("create bootstrap account: %w", err)
	}
	return true, nil
}
