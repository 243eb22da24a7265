package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/logging"
	"github.com/psicopedagogiando/tienda/internal/server/models"
	"github.com/psicopedagogiando/tienda/internal/server/payments"
	"github.com/psicopedagogiando/tienda/internal/server/pricing"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/repomanager"
	"github.com/psicopedagogiando/tienda/internal/server/session"
)

// PurchaseService serves purchase history and downloads, and starts checkouts.
type PurchaseService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       FileStore
	gateway     PaymentGateway
	log         logging.Logger
}

func NewPurchaseService(db *sql.DB, m repomanager.RepositoryManager, store FileStore, gateway PaymentGateway, log logging.Logger) *PurchaseService {
	return &PurchaseService{db: db, repomanager: m, store: store, gateway: gateway, log: log}
}

// History lists the caller's purchases newest first.
func (s *PurchaseService) History(ctx context.Context, sess *session.Session) ([]*models.PurchaseHistoryItem, error) {
	if sess == nil {
		return nil, common.ErrorUnauthorized
	}
	items, err := s.repomanager.Purchases(s.db).ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("error listing purchases: %w", err)
	}
	return items, nil
}

// Download returns a short-lived URL for the full material file. Only buyers
// of the material and admins may download it.
func (s *PurchaseService) Download(ctx context.Context, sess *session.Session, materialID string) (string, error) {
	if sess == nil {
		return "", common.ErrorUnauthorized
	}
	if _, err := uuid.Parse(materialID); err != nil {
		return "", common.ErrorNotFound
	}

	allowed, err := s.repomanager.Purchases(s.db).HasPurchased(ctx, sess.UserID, materialID)
	if err != nil {
		return "", fmt.Errorf("error checking purchase: %w", err)
	}
	if !allowed {
		u, err := s.repomanager.Users(s.db).GetByID(ctx, sess.UserID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return "", fmt.Errorf("error loading user: %w", err)
		}
		allowed = u != nil && u.Rol == common.RoleAdmin
	}
	if !allowed {
		return "", common.ErrorForbidden
	}

	m, err := s.repomanager.Materials(s.db).GetByID(ctx, materialID)
	if err != nil {
		return "", err
	}
	if m.ArchivoKey == "" {
		return "", common.ErrorNotFound
	}
	return s.store.SignedURL(ctx, m.ArchivoKey)
}

// Checkout creates a gateway preference for the material, priced from the
// stored record, and returns the URL to send the buyer to.
func (s *PurchaseService) Checkout(ctx context.Context, sess *session.Session, materialID string) (string, error) {
	if sess == nil {
		return "", common.ErrorUnauthorized
	}
	if _, err := uuid.Parse(materialID); err != nil {
		return "", common.ErrorNotFound
	}
	m, err := s.repomanager.Materials(s.db).GetByID(ctx, materialID)
	if err != nil {
		return "", err
	}

	owned, err := s.repomanager.Purchases(s.db).HasPurchased(ctx, sess.UserID, materialID)
	if err != nil {
		return "", fmt.Errorf("error checking purchase: %w", err)
	}
	if owned {
		return "", common.ErrAlreadyExists
	}

	pref, err := s.gateway.CreatePreference(ctx, payments.PreferenceRequest{
		MaterialID: m.ID,
		Title:      m.Nombre,
		PriceCents: pricing.ForMaterial(m),
		UserID:     sess.UserID,
	})
	if err != nil {
		return "", fmt.Errorf("error creating checkout: %w", err)
	}
	s.log.Info(ctx, "checkout started", "material_id", m.ID, "user_id", sess.UserID, "preference_id", pref.ID)
	return pref.InitPoint, nil
}
