// Package httpapi exposes the storefront over HTTP: a JSON API for the site
// and the payment gateway return route.
package httpapi

import (
	"context"
	"encoding/json"

	"github.com/psicopedagogiando/tienda/internal/logging"
	"github.com/psicopedagogiando/tienda/internal/server/config"
	"github.com/psicopedagogiando/tienda/internal/server/models"
	"github.com/psicopedagogiando/tienda/internal/server/services"
	"github.com/psicopedagogiando/tienda/internal/server/session"
	"github.com/redis/go-redis/v9"
)

type Users interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Profile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, in services.ProfileUpdate) (*models.User, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

type Catalog interface {
	List(ctx context.Context, filter models.MaterialFilter, viewer *session.Session) ([]*services.CatalogItem, error)
	Get(ctx context.Context, id string, viewer *session.Session) (*services.CatalogItem, error)
	Create(ctx context.Context, in services.MaterialInput) (*models.Material, error)
	Update(ctx context.Context, id string, in services.MaterialInput) (*models.Material, error)
	Delete(ctx context.Context, id string) error
}

type Purchases interface {
	History(ctx context.Context, sess *session.Session) ([]*models.PurchaseHistoryItem, error)
	Download(ctx context.Context, sess *session.Session, materialID string) (string, error)
	Checkout(ctx context.Context, sess *session.Session, materialID string) (string, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, sess *session.Session, c services.Confirmation) services.Result
	Simulate(ctx context.Context, sess *session.Session, materialID string) (*models.Purchase, error)
}

type Content interface {
	Section(ctx context.Context, seccion string) (map[string]any, error)
	UpdateSection(ctx context.Context, seccion string, raw json.RawMessage) (map[string]any, error)
	Home(ctx context.Context, viewer *session.Session) (*services.HomePage, error)
	UploadImage(ctx context.Context, up *services.Upload, replaces string) (string, error)
	Posts(ctx context.Context, search string, page int) (*services.PostPage, error)
	CreatePost(ctx context.Context, in services.PostInput) (*models.Post, error)
	UpdatePost(ctx context.Context, id string, in services.PostInput) (*models.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// Services groups the application services the handlers call.
type Services struct {
	Users      Users
	Catalog    Catalog
	Purchases  Purchases
	Reconciler Reconciler
	Content    Content
}

// Handler serves every route. Redis is optional and only backs the rate
// limiter.
type Handler struct {
	svc   Services
	cfg   *config.Config
	log   logging.Logger
	redis redis.UniversalClient
}

func NewHandler(svc Services, cfg *config.Config, log logging.Logger, rdb redis.UniversalClient) *Handler {
	return &Handler{svc: svc, cfg: cfg, log: log, redis: rdb}
}
