// Package materials is the catalog store.
package materials

import (
	"context"

	"github.com/psicopedagogiando/tienda/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.Material) (*models.Material, error)
	Update(ctx context.Context, m *models.Material) (*models.Material, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*models.Material, error)
	// List returns materials newest first, narrowed by filter.
	List(ctx context.Context, filter models.MaterialFilter) ([]*models.Material, error)
}
