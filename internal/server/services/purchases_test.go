package services

import (
	"context"
	"testing"

	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/server/models"
	"github.com/psicopedagogiando/tienda/internal/server/payments"
	"github.com/psicopedagogiando/tienda/internal/server/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPurchaseEnv(t *testing.T) (*PurchaseService, *fakeRepoManager, *fakeGateway) {
	t.Helper()
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	rm.materials = newFakeMaterials(seedMaterials()...)
	rm.materials.items[0].ArchivoKey = "full-a"
	rm.users = newFakeUsers(
		&models.User{ID: "buyer", Rol: common.RoleNormal},
		&models.User{ID: "other", Rol: common.RoleNormal},
		&models.User{ID: "admin", Rol: common.RoleAdmin},
	)
	gw := &fakeGateway{pref: payments.Preference{ID: "pref-1", InitPoint: "https://mp.test/init"}}
	return NewPurchaseService(db, rm, newFakeStore(), gw, discardLogger()), rm, gw
}

func TestHistory(t *testing.T) {
	s, rm, _ := newPurchaseEnv(t)
	ctx := context.Background()
	_, _ = rm.purchases.Create(ctx, &models.Purchase{UserID: "buyer", MaterialID: matA, PaymentID: "p1"})
	_, _ = rm.purchases.Create(ctx, &models.Purchase{UserID: "other", MaterialID: matA, PaymentID: "p2"})
	_, _ = rm.purchases.Create(ctx, &models.Purchase{UserID: "buyer", MaterialID: matB, PaymentID: "p3"})

	items, err := s.History(ctx, &session.Session{UserID: "buyer"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "p3", items[0].PaymentID)
	assert.Equal(t, "p1", items[1].PaymentID)

	_, err = s.History(ctx, nil)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestDownload(t *testing.T) {
	s, rm, _ := newPurchaseEnv(t)
	ctx := context.Background()
	_, _ = rm.purchases.Create(ctx, &models.Purchase{UserID: "buyer", MaterialID: matA, PaymentID: "p1"})

	url, err := s.Download(ctx, &session.Session{UserID: "buyer"}, matA)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.test/full-a", url)

	_, err = s.Download(ctx, &session.Session{UserID: "other"}, matA)
	assert.ErrorIs(t, err, common.ErrorForbidden)

	url, err = s.Download(ctx, &session.Session{UserID: "admin"}, matA)
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	_, err = s.Download(ctx, &session.Session{UserID: "admin"}, matB)
	assert.ErrorIs(t, err, common.ErrorNotFound, "no file uploaded")

	_, err = s.Download(ctx, nil, matA)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = s.Download(ctx, &session.Session{UserID: "buyer"}, "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCheckout(t *testing.T) {
	s, rm, gw := newPurchaseEnv(t)
	ctx := context.Background()

	url, err := s.Checkout(ctx, &session.Session{UserID: "buyer"}, matA)
	require.NoError(t, err)
	assert.Equal(t, "https://mp.test/init", url)
	assert.Equal(t, payments.PreferenceRequest{
		MaterialID: matA, Title: "Cuadernillo de lectura", PriceCents: 80000, UserID: "buyer",
	}, gw.got)

	_, _ = rm.purchases.Create(ctx, &models.Purchase{UserID: "buyer", MaterialID: matA, PaymentID: "p1"})
	_, err = s.Checkout(ctx, &session.Session{UserID: "buyer"}, matA)
	assert.ErrorIs(t, err, common.ErrAlreadyExists)

	_, err = s.Checkout(ctx, nil, matA)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	gw.err = payments.ErrGateway
	_, err = s.Checkout(ctx, &session.Session{UserID: "buyer"}, matB)
	assert.ErrorIs(t, err, payments.ErrGateway)
}
