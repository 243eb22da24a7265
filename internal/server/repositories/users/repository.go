// Package users declares the identity store: accounts, profiles and roles.
package users

import (
	"context"

	"github.com/psicopedagogiando/tienda/internal/server/models"
)

// Repository persists accounts and their profiles.
type Repository interface {
	// Create stores a new account. A duplicate email yields common.ErrAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail and GetByID return common.ErrorNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)

	// UpdateProfile changes the owner-editable fields only.
	UpdateProfile(ctx context.Context, id, email, telefono, pais string) (*models.User, error)

	// SetRole changes the stored role of the account with the given email.
	SetRole(ctx context.Context, email, rol string) error
}
