// Package services contains the storefront's business logic. Services are
// bound to a *sql.DB and a RepositoryManager so repositories can run against
// the pool or inside a transaction.
package services

import (
	"context"
	"io"

	"github.com/psicopedagogiando/tienda/internal/server/payments"
)

// Upload is a file received from an admin form.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
	Size        int64
}

// FileStore is the object storage used for materials and site images.
type FileStore interface {
	UploadPrivate(ctx context.Context, name, contentType string, body io.Reader, size int64) (string, error)
	UploadPublic(ctx context.Context, name, contentType string, body io.Reader, size int64) (key, url string, err error)
	RemovePrivate(ctx context.Context, key string) error
	RemovePublic(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string) (string, error)
	KeyFromPublicURL(u string) (string, bool)
}

// PaymentGateway creates hosted checkouts.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, req payments.PreferenceRequest) (payments.Preference, error)
}
