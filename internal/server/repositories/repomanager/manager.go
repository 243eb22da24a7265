package repomanager

import (
	"context"
	"database/sql"

	"github.com/psicopedagogiando/tienda/internal/dbx"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/content"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/materials"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/posts"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/purchases"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/refreshtokens"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX so services can run
// the same repository against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Materials(db dbx.DBTX) materials.Repository
	Purchases(db dbx.DBTX) purchases.Repository
	Posts(db dbx.DBTX) posts.Repository
	Content(db dbx.DBTX) content.Repository
}
