package purchases

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/dbx"
	"github.com/psicopedagogiando/tienda/internal/server/models"
)

// PaymentIDConstraint is the UNIQUE constraint that makes a payment id
// recordable at most once, across every server instance.
const PaymentIDConstraint = "compras_payment_id_key"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Purchase) (*models.Purchase, error) {
	query :=
		`INSERT INTO compras (user_id, material_id, payment_id, status, nombre_usuario, email_usuario,
		 nombre_material, precio_pagado, fecha)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric / 100, $9)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		p.UserID, p.MaterialID, p.PaymentID, p.Status, p.NombreUsuario, p.EmailUsuario,
		p.NombreMaterial, p.PrecioPagadoCents, p.Fecha).
		Scan(&p.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err, PaymentIDConstraint) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Purchase, error) {
	query :=
		`SELECT id, user_id, material_id, payment_id, status, nombre_usuario, email_usuario, nombre_material,
		 (precio_pagado * 100)::bigint, fecha FROM compras
		 WHERE payment_id = $1
		 `

	p := &models.Purchase{}
	err := r.db.QueryRowContext(ctx, query, paymentID).Scan(&p.ID, &p.UserID, &p.MaterialID, &p.PaymentID,
		&p.Status, &p.NombreUsuario, &p.EmailUsuario, &p.NombreMaterial, &p.PrecioPagadoCents, &p.Fecha)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.PurchaseHistoryItem, error) {
	query :=
		`SELECT c.id, c.user_id, c.material_id, c.payment_id, c.status, c.nombre_usuario, c.email_usuario,
		 c.nombre_material, (c.precio_pagado * 100)::bigint, c.fecha, m.id IS NOT NULL, COALESCE(m.imagen_portada, '')
		 FROM compras c
		 LEFT JOIN materiales m ON m.id = c.material_id
		 WHERE c.user_id = $1
		 ORDER BY c.fecha DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.PurchaseHistoryItem
	for rows.Next() {
		it := &models.PurchaseHistoryItem{}
		if err := rows.Scan(&it.ID, &it.UserID, &it.MaterialID, &it.PaymentID, &it.Status, &it.NombreUsuario,
			&it.EmailUsuario, &it.NombreMaterial, &it.PrecioPagadoCents, &it.Fecha,
			&it.MaterialAvailable, &it.ImagenPortada); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) HasPurchased(ctx context.Context, userID, materialID string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM compras WHERE user_id = $1 AND material_id = $2)
		 `

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, userID, materialID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) PurchasedMaterialIDs(ctx context.Context, userID string) ([]string, error) {
	query :=
		`SELECT DISTINCT material_id FROM compras
		 WHERE user_id = $1
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}

func (r *PostgresRepository) SalesCount(ctx context.Context) (map[string]int64, error) {
	query :=
		`SELECT material_id, count(*) FROM compras
		 GROUP BY material_id
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return counts, nil
}
