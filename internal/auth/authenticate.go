package auth

import (
	"context"
	"errors"

	"smartfiller-backend/internal/model"
	"smartfiller-backend/internal/store"
)

// ErrInvalidCredentials is deliberately generic: a missing user and a
// wrong password are indistinguishable to the caller, so login attempts
// cannot enumerate accounts.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticate verifies an email/password pair scoped to a company. The
// company id disambiguates tenants: the same email may exist in
// different companies.
func Authenticate(ctx context.Context, s store.Store, hasher *Hasher, email, password string, companyID int64) (*model.User, error) {
	user, err := s.UserByEmail(ctx, companyID, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !hasher.Check(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword replaces the user's password hash after verifying the
// current password. The stored hash is untouched on failure.
func ChangePassword(ctx context.Context, s store.Store, hasher *Hasher, userID int64, currentPassword, newPassword string) error {
	user, err := s.UserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}

	if !hasher.Check(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	newHash, err := hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.UpdatePasswordHash(ctx, userID, newHash)
}
