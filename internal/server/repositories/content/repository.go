// Package content stores editable site sections as JSON documents.
package content

import (
	"context"
	"encoding/json"

	"github.com/psicopedagogiando/tienda/internal/server/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound for a section never saved.
	Get(ctx context.Context, seccion string) (*models.ContentBlock, error)
	// Upsert replaces the stored document of a section.
	Upsert(ctx context.Context, seccion string, valores json.RawMessage) error
}
