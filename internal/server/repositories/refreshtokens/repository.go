// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/psicopedagogiando/tienda/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh
// tokens. Tokens are addressed by their hash; raw tokens are never stored.
type Repository interface {
	// Create stores a new refresh token hash for userID expiring at now+validity.
	Create(ctx context.Context, userID string, tokenHash string, validity time.Duration) error

	// Find returns the token metadata or common.ErrorNotFound.
	Find(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// Delete removes a token. Deleting a non-existent token is not an error.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteExpired purges tokens whose expiry is before now and returns how
	// many rows were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
