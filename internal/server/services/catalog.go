package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/logging"
	"github.com/psicopedagogiando/tienda/internal/server/models"
	"github.com/psicopedagogiando/tienda/internal/server/pricing"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/repomanager"
	"github.com/psicopedagogiando/tienda/internal/server/session"
)

// AgeTags are the age ranges a material can be tagged with.
var AgeTags = []string{"Todas las edades", "3-5 años", "6-8 años", "9-12 años"}

const (
	maxNombreLen      = 50
	maxDescripcionLen = 147
)

// Featured slot modes.
const (
	FeaturedAuto   = "automatico"
	FeaturedManual = "manual"
)

// FeaturedSlot configures one of the home page highlights.
type FeaturedSlot struct {
	ID   *string `json:"id"`
	Modo string  `json:"modo"`
}

// CatalogItem is a material as seen by a particular viewer.
type CatalogItem struct {
	*models.Material
	FinalPriceCents int64
	Purchased       bool
	// Sales is only filled in for admins.
	Sales *int64
}

type MaterialInput struct {
	Nombre              string
	Descripcion         string
	Edad                string
	PrecioCents         int64
	EnOferta            bool
	PorcentajeDescuento int
	Archivo             *Upload
	Portada             *Upload
	Preview             *Upload
}

type CatalogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       FileStore
	log         logging.Logger
}

func NewCatalogService(db *sql.DB, m repomanager.RepositoryManager, store FileStore, log logging.Logger) *CatalogService {
	return &CatalogService{db: db, repomanager: m, store: store, log: log}
}

// List returns the catalog newest first, narrowed by filter.
func (s *CatalogService) List(ctx context.Context, filter models.MaterialFilter, viewer *session.Session) ([]*CatalogItem, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	if filter.Edad != "" && !slices.Contains(AgeTags, filter.Edad) {
		return nil, common.Invalid("edad", "unknown age range")
	}

	ms, err := s.repomanager.Materials(s.db).List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing materials: %w", err)
	}

	owned, sales, err := s.viewerState(ctx, viewer)
	if err != nil {
		return nil, err
	}

	items := make([]*CatalogItem, 0, len(ms))
	for _, m := range ms {
		items = append(items, s.item(m, owned, sales))
	}
	return items, nil
}

// Get returns one material. Malformed ids are reported as not found.
func (s *CatalogService) Get(ctx context.Context, id string, viewer *session.Session) (*CatalogItem, error) {
	m, err := s.material(ctx, id)
	if err != nil {
		return nil, err
	}
	owned, sales, err := s.viewerState(ctx, viewer)
	if err != nil {
		return nil, err
	}
	return s.item(m, owned, sales), nil
}

func (s *CatalogService) material(ctx context.Context, id string) (*models.Material, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Materials(s.db).GetByID(ctx, id)
}

func (s *CatalogService) viewerState(ctx context.Context, viewer *session.Session) (map[string]bool, map[string]int64, error) {
	if viewer == nil {
		return nil, nil, nil
	}
	ids, err := s.repomanager.Purchases(s.db).PurchasedMaterialIDs(ctx, viewer.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading purchases: %w", err)
	}
	owned := make(map[string]bool, len(ids))
	for _, id := range ids {
		owned[id] = true
	}

	u, err := s.repomanager.Users(s.db).GetByID(ctx, viewer.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return owned, nil, nil
		}
		return nil, nil, fmt.Errorf("error loading viewer: %w", err)
	}
	if u.Rol != common.RoleAdmin {
		return owned, nil, nil
	}
	sales, err := s.repomanager.Purchases(s.db).SalesCount(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("error counting sales: %w", err)
	}
	if sales == nil {
		sales = map[string]int64{}
	}
	return owned, sales, nil
}

func (s *CatalogService) item(m *models.Material, owned map[string]bool, sales map[string]int64) *CatalogItem {
	it := &CatalogItem{
		Material:        m,
		FinalPriceCents: pricing.ForMaterial(m),
		Purchased:       owned[m.ID],
	}
	if sales != nil {
		n := sales[m.ID]
		it.Sales = &n
	}
	return it
}

func validateMaterial(in MaterialInput) error {
	nombre := strings.TrimSpace(in.Nombre)
	switch {
	case nombre == "":
		return common.Invalid("nombre", "required")
	case len([]rune(nombre)) > maxNombreLen:
		return common.Invalid("nombre", fmt.Sprintf("at most %d characters", maxNombreLen))
	case len([]rune(in.Descripcion)) > maxDescripcionLen:
		return common.Invalid("descripcion", fmt.Sprintf("at most %d characters", maxDescripcionLen))
	case in.PrecioCents < 0:
		return common.Invalid("precio", "must not be negative")
	case in.PorcentajeDescuento < 0 || in.PorcentajeDescuento > 100:
		return common.Invalid("porcentaje_descuento", "must be between 0 and 100")
	case in.Edad != "" && !slices.Contains(AgeTags, in.Edad):
		return common.Invalid("edad", "unknown age range")
	}
	return nil
}

// stored tracks objects uploaded during one admin operation so they can be
// rolled back if the row write fails.
type stored struct {
	privateKeys []string
	publicKeys  []string
}

func (s *CatalogService) uploadFiles(ctx context.Context, in MaterialInput, m *models.Material) (*stored, error) {
	st := &stored{}
	if in.Archivo != nil {
		key, err := s.store.UploadPrivate(ctx, "full.pdf", in.Archivo.ContentType, in.Archivo.Body, in.Archivo.Size)
		if err != nil {
			return st, fmt.Errorf("error uploading material file: %w", err)
		}
		st.privateKeys = append(st.privateKeys, key)
		m.ArchivoKey = key
	}
	if in.Portada != nil {
		key, url, err := s.store.UploadPublic(ctx, "portada"+extOr(in.Portada.Name, ".jpg"), in.Portada.ContentType, in.Portada.Body, in.Portada.Size)
		if err != nil {
			return st, fmt.Errorf("error uploading cover: %w", err)
		}
		st.publicKeys = append(st.publicKeys, key)
		m.ImagenPortada = url
	}
	if in.Preview != nil {
		key, url, err := s.store.UploadPublic(ctx, "preview.pdf", in.Preview.ContentType, in.Preview.Body, in.Preview.Size)
		if err != nil {
			return st, fmt.Errorf("error uploading preview: %w", err)
		}
		st.publicKeys = append(st.publicKeys, key)
		m.PreviewURL = url
	}
	return st, nil
}

func (s *CatalogService) discard(ctx context.Context, st *stored) {
	for _, k := range st.privateKeys {
		if err := s.store.RemovePrivate(ctx, k); err != nil {
			s.log.Warn(ctx, "failed to remove private object", "key", k, "err", err)
		}
	}
	for _, k := range st.publicKeys {
		if err := s.store.RemovePublic(ctx, k); err != nil {
			s.log.Warn(ctx, "failed to remove public object", "key", k, "err", err)
		}
	}
}

func extOr(name, fallback string) string {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return ext
	}
	return fallback
}

func (s *CatalogService) Create(ctx context.Context, in MaterialInput) (*models.Material, error) {
	if err := validateMaterial(in); err != nil {
		return nil, err
	}
	m := &models.Material{
		Nombre:              strings.TrimSpace(in.Nombre),
		Descripcion:         in.Descripcion,
		Edad:                defaultAge(in.Edad),
		PrecioCents:         in.PrecioCents,
		EnOferta:            in.EnOferta,
		PorcentajeDescuento: in.PorcentajeDescuento,
	}

	st, err := s.uploadFiles(ctx, in, m)
	if err != nil {
		s.discard(ctx, st)
		return nil, err
	}

	created, err := s.repomanager.Materials(s.db).Create(ctx, m)
	if err != nil {
		s.discard(ctx, st)
		return nil, fmt.Errorf("error creating material: %w", err)
	}
	return created, nil
}

// Update replaces the editable fields of a material. Files not supplied keep
// their current objects; replaced objects are removed once the row is saved.
func (s *CatalogService) Update(ctx context.Context, id string, in MaterialInput) (*models.Material, error) {
	if err := validateMaterial(in); err != nil {
		return nil, err
	}
	current, err := s.material(ctx, id)
	if err != nil {
		return nil, err
	}

	m := *current
	m.Nombre = strings.TrimSpace(in.Nombre)
	m.Descripcion = in.Descripcion
	m.Edad = defaultAge(in.Edad)
	m.PrecioCents = in.PrecioCents
	m.EnOferta = in.EnOferta
	m.PorcentajeDescuento = in.PorcentajeDescuento

	st, err := s.uploadFiles(ctx, in, &m)
	if err != nil {
		s.discard(ctx, st)
		return nil, err
	}

	updated, err := s.repomanager.Materials(s.db).Update(ctx, &m)
	if err != nil {
		s.discard(ctx, st)
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error updating material: %w", err)
	}

	old := &stored{}
	if in.Archivo != nil && current.ArchivoKey != "" {
		old.privateKeys = append(old.privateKeys, current.ArchivoKey)
	}
	if in.Portada != nil {
		old.publicKeys = s.appendPublicKey(old.publicKeys, current.ImagenPortada)
	}
	if in.Preview != nil {
		old.publicKeys = s.appendPublicKey(old.publicKeys, current.PreviewURL)
	}
	s.discard(ctx, old)

	return updated, nil
}

// Delete removes the material row and then, best effort, its objects.
// Purchases keep their snapshots.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	m, err := s.material(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repomanager.Materials(s.db).Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("error deleting material: %w", err)
	}

	st := &stored{}
	if m.ArchivoKey != "" {
		st.privateKeys = append(st.privateKeys, m.ArchivoKey)
	}
	st.publicKeys = s.appendPublicKey(st.publicKeys, m.ImagenPortada)
	st.publicKeys = s.appendPublicKey(st.publicKeys, m.PreviewURL)
	s.discard(ctx, st)
	return nil
}

func (s *CatalogService) appendPublicKey(keys []string, url string) []string {
	if url == "" {
		return keys
	}
	if k, ok := s.store.KeyFromPublicURL(url); ok {
		return append(keys, k)
	}
	return keys
}

func defaultAge(edad string) string {
	if edad == "" {
		return AgeTags[0]
	}
	return edad
}

// Featured resolves up to three home page highlights. An automatic slot at
// position i shows the i-th most recent material; a manual slot shows the
// chosen material and falls back to the automatic choice when it is gone.
// Slots with nothing to show are nil.
func (s *CatalogService) Featured(ctx context.Context, slots []FeaturedSlot, viewer *session.Session) ([]*CatalogItem, error) {
	if len(slots) > 3 {
		slots = slots[:3]
	}
	recent, err := s.repomanager.Materials(s.db).List(ctx, models.MaterialFilter{})
	if err != nil {
		return nil, fmt.Errorf("error listing materials: %w", err)
	}
	owned, sales, err := s.viewerState(ctx, viewer)
	if err != nil {
		return nil, err
	}

	out := make([]*CatalogItem, len(slots))
	for i, slot := range slots {
		var m *models.Material
		if slot.Modo == FeaturedManual && slot.ID != nil && *slot.ID != "" {
			chosen, err := s.material(ctx, *slot.ID)
			switch {
			case err == nil:
				m = chosen
			case !errors.Is(err, common.ErrorNotFound):
				return nil, err
			}
		}
		if m == nil && i < len(recent) {
			m = recent[i]
		}
		if m != nil {
			out[i] = s.item(m, owned, sales)
		}
	}
	return out, nil
}
