package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/dbx"
	"github.com/psicopedagogiando/tienda/internal/server/models"
)

const emailConstraint = "usuarios_email_key"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO usuarios (email, password_hash, nombre, telefono, pais, fecha_nacimiento, rol)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.Nombre, user.Telefono, user.Pais, nullTime(user.FechaNac), user.Rol).
		Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err, emailConstraint) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT id, email, password_hash, nombre, telefono, pais, fecha_nacimiento, rol, created_at FROM usuarios
		 WHERE email = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, email, password_hash, nombre, telefono, pais, fecha_nacimiento, rol, created_at FROM usuarios
		 WHERE id = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id, email, telefono, pais string) (*models.User, error) {
	query :=
		`UPDATE usuarios SET email = $2, telefono = $3, pais = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING id, email, password_hash, nombre, telefono, pais, fecha_nacimiento, rol, created_at
		 `

	u, err := r.scanOne(r.db.QueryRowContext(ctx, query, id, email, telefono, pais))
	if err != nil && dbx.IsUniqueViolation(err, emailConstraint) {
		return nil, common.ErrAlreadyExists
	}
	return u, err
}

func (r *PostgresRepository) SetRole(ctx context.Context, email, rol string) error {
	query :=
		`UPDATE usuarios SET rol = $2, updated_at = now()
		 WHERE email = $1
		 `

	res, err := r.db.ExecContext(ctx, query, email, rol)
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

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var fechaNac sql.NullTime

	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Nombre, &user.Telefono,
		&user.Pais, &fechaNac, &user.Rol, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if fechaNac.Valid {
		t := fechaNac.Time
		user.FechaNac = &t
	}
	return user, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
