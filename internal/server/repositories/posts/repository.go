// Package posts stores the "psicopedagogiando" feed.
package posts

import (
	"context"

	"github.com/psicopedagogiando/tienda/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Post) (*models.Post, error)
	Update(ctx context.Context, p *models.Post) (*models.Post, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	// List returns one page of posts whose title contains search, newest first.
	List(ctx context.Context, search string, limit, offset int) ([]*models.Post, error)
	Count(ctx context.Context, search string) (int, error)
}
