package materials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/dbx"
	"github.com/psicopedagogiando/tienda/internal/server/models"
)

// Prices are NUMERIC(12,2) in the table and cents in Go; the conversion
// happens in SQL so no float ever carries money.
const selectColumns = `id, nombre, descripcion, edad, (precio * 100)::bigint, en_oferta, porcentaje_descuento,
		 archivo_key, preview_url, imagen_portada, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.Material) (*models.Material, error) {
	query :=
		`INSERT INTO materiales (nombre, descripcion, edad, precio, en_oferta, porcentaje_descuento, archivo_key, preview_url, imagen_portada)
		 VALUES ($1, $2, $3, $4::numeric / 100, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		m.Nombre, m.Descripcion, m.Edad, m.PrecioCents, m.EnOferta, m.PorcentajeDescuento,
		m.ArchivoKey, m.PreviewURL, m.ImagenPortada).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return m, nil
}

func (r *PostgresRepository) Update(ctx context.Context, m *models.Material) (*models.Material, error) {
	query :=
		`UPDATE materiales SET nombre = $2, descripcion = $3, edad = $4, precio = $5::numeric / 100, en_oferta = $6,
		 porcentaje_descuento = $7, archivo_key = $8, preview_url = $9, imagen_portada = $10, updated_at = now()
		 WHERE id = $1
		 RETURNING created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		m.ID, m.Nombre, m.Descripcion, m.Edad, m.PrecioCents, m.EnOferta, m.PorcentajeDescuento,
		m.ArchivoKey, m.PreviewURL, m.ImagenPortada).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return m, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query :=
		`DELETE FROM materiales
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Material, error) {
	query := `SELECT ` + selectColumns + ` FROM materiales
		 WHERE id = $1
		 `

	m := &models.Material{}
	if err := scan(r.db.QueryRowContext(ctx, query, id), m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter models.MaterialFilter) ([]*models.Material, error) {
	query := `SELECT ` + selectColumns + ` FROM materiales
		 WHERE ($1 = '' OR nombre ILIKE '%' || $1 || '%')
		   AND ($2 = '' OR edad = $2)
		 ORDER BY created_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, escapeLike(strings.TrimSpace(filter.Query)), filter.Edad)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Material
	for rows.Next() {
		m := &models.Material{}
		if err := scan(rows, m); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner, m *models.Material) error {
	return s.Scan(&m.ID, &m.Nombre, &m.Descripcion, &m.Edad, &m.PrecioCents, &m.EnOferta,
		&m.PorcentajeDescuento, &m.ArchivoKey, &m.PreviewURL, &m.ImagenPortada, &m.CreatedAt, &m.UpdatedAt)
}

// escapeLike neutralises LIKE wildcards typed by users so they match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
