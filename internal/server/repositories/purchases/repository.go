// Package purchases stores the immutable purchase records.
package purchases

import (
	"context"

	"github.com/psicopedagogiando/tienda/internal/server/models"
)

// Repository never exposes update or delete: purchases are written once.
type Repository interface {
	// Create inserts a purchase. A second purchase for the same payment id
	// yields common.ErrAlreadyExists.
	Create(ctx context.Context, p *models.Purchase) (*models.Purchase, error)

	// FindByPaymentID returns common.ErrorNotFound when no purchase exists.
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Purchase, error)

	// ListByUser returns the user's purchases newest first.
	ListByUser(ctx context.Context, userID string) ([]*models.PurchaseHistoryItem, error)

	// HasPurchased reports whether the user owns the material.
	HasPurchased(ctx context.Context, userID, materialID string) (bool, error)

	// PurchasedMaterialIDs lists the distinct materials the user owns.
	PurchasedMaterialIDs(ctx context.Context, userID string) ([]string, error)

	// SalesCount returns the number of purchases per material id.
	SalesCount(ctx context.Context) (map[string]int64, error)
}
