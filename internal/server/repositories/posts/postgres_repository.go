package posts

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

const titleFilter = `($1 = '' OR titulo ILIKE '%' || $1 || '%')`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Post) (*models.Post, error) {
	query :=
		`INSERT INTO publicaciones (tipo, titulo, contenido, url_media, media_key, link_externo)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query, p.Tipo, p.Titulo, p.Contenido, p.URLMedia, p.MediaKey, p.LinkExterno).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *models.Post) (*models.Post, error) {
	query :=
		`UPDATE publicaciones SET tipo = $2, titulo = $3, contenido = $4, url_media = $5, media_key = $6,
		 link_externo = $7, updated_at = now()
		 WHERE id = $1
		 RETURNING created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query, p.ID, p.Tipo, p.Titulo, p.Contenido, p.URLMedia, p.MediaKey, p.LinkExterno).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM publicaciones WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query :=
		`SELECT id, tipo, titulo, contenido, url_media, media_key, link_externo, created_at, updated_at
		 FROM publicaciones
		 WHERE id = $1
		 `

	p := &models.Post{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Tipo, &p.Titulo, &p.Contenido, &p.URLMedia,
		&p.MediaKey, &p.LinkExterno, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context, search string, limit, offset int) ([]*models.Post, error) {
	query :=
		`SELECT id, tipo, titulo, contenido, url_media, media_key, link_externo, created_at, updated_at
		 FROM publicaciones
		 WHERE ` + titleFilter + `
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3
		 `

	rows, err := r.db.QueryContext(ctx, query, escapeLike(search), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Post
	for rows.Next() {
		p := &models.Post{}
		if err := rows.Scan(&p.ID, &p.Tipo, &p.Titulo, &p.Contenido, &p.URLMedia, &p.MediaKey,
			&p.LinkExterno, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Count(ctx context.Context, search string) (int, error) {
	query := `SELECT count(*) FROM publicaciones WHERE ` + titleFilter

	var n int
	if err := r.db.QueryRowContext(ctx, query, escapeLike(search)).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.TrimSpace(s))
}
