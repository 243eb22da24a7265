package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/dbx"
	"github.com/psicopedagogiando/tienda/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, seccion string) (*models.ContentBlock, error) {
	query :=
		`SELECT seccion, valores, updated_at FROM contenido
		 WHERE seccion = $1
		 `

	b := &models.ContentBlock{}
	var raw []byte
	err := r.db.QueryRowContext(ctx, query, seccion).Scan(&b.Seccion, &raw, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	b.Valores = json.RawMessage(raw)
	return b, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, seccion string, valores json.RawMessage) error {
	query :=
		`INSERT INTO contenido (seccion, valores, updated_at)
		 VALUES ($1, $2::jsonb, now())
		 ON CONFLICT (seccion) DO UPDATE SET valores = EXCLUDED.valores, updated_at = now()
		 `

	if _, err := r.db.ExecContext(ctx, query, seccion, string(valores)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
