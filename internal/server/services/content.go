package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/logging"
	"github.com/psicopedagogiando/tienda/internal/server/icons"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/repomanager"
	"github.com/psicopedagogiando/tienda/internal/server/session"
)

// Editable sections of the site.
const (
	SectionHome        = "home"
	SectionNavbar      = "navbar"
	SectionQuienSoy    = "quien_soy"
	SectionPsicoHeader = "psico_header"
)

func sectionDefaults(seccion string) (map[string]any, bool) {
	switch seccion {
	case SectionHome:
		return map[string]any{
			"hero_titulo":       "Recursos Psicopedagógicos para potenciar el aprendizaje",
			"hero_subtitulo":    "Herramientas diseñadas para profesionales y familias.",
			"hero_bg_url":       "https://images.unsplash.com/photo-1503454537195-1dcabb73ffb9",
			"problema_titulo":   "¿Buscas material dinámico?",
			"problema_texto":    "Descubre recursos listos para descargar que facilitan el proceso de enseñanza y aprendizaje.",
			"beneficios_titulo": "¿Por qué elegir nuestros materiales?",
			"beneficios": []any{
				map[string]any{"icono": "FaDownload", "titulo": "Descarga Inmediata", "texto": "Accede a tus materiales al instante. Sin esperas, sin complicaciones."},
				map[string]any{"icono": "FaCheckCircle", "titulo": "Calidad Garantizada", "texto": "Recursos diseñados y probados por profesionales en psicopedagogía."},
				map[string]any{"icono": "FaHeart", "titulo": "Apoyo Constante", "texto": "Contenido actualizado y pensado para facilitar tu trabajo diario."},
			},
			"destacados_titulo":    "Materiales Destacados",
			"destacados_subtitulo": "Recursos cuidadosamente seleccionados para cada etapa del aprendizaje",
			"frase_ver_todos":      "¿Listo para potenciar tu práctica educativa?",
			"config_destacados": []any{
				map[string]any{"id": nil, "modo": FeaturedAuto},
				map[string]any{"id": nil, "modo": FeaturedAuto},
				map[string]any{"id": nil, "modo": FeaturedAuto},
			},
		}, true
	case SectionNavbar:
		return map[string]any{
			"brand_text":             "Lic. Brenda Grossi",
			"link_inicio":            "Inicio",
			"link_quien_soy":         "Quién Soy",
			"link_materiales":        "Materiales",
			"link_psicopedagogiando": "Psicopedagogiando",
		}, true
	case SectionQuienSoy:
		return map[string]any{
			"titulo":     "Quién Soy",
			"texto":      "",
			"imagen_url": "",
		}, true
	case SectionPsicoHeader:
		return map[string]any{
			"titulo": "Psicopedagogiando",
			"frase":  "Un espacio para aprender, compartir y crecer juntos.",
		}, true
	}
	return nil, false
}

// HomePage is the home section together with its resolved highlights.
type HomePage struct {
	Content  map[string]any
	Featured []*CatalogItem
}

// ContentService manages editable site sections, site images and the
// "psicopedagogiando" posts.
type ContentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       FileStore
	catalog     *CatalogService
	log         logging.Logger
}

func NewContentService(db *sql.DB, m repomanager.RepositoryManager, store FileStore, catalog *CatalogService, log logging.Logger) *ContentService {
	return &ContentService{db: db, repomanager: m, store: store, catalog: catalog, log: log}
}

// Section returns the stored values of seccion laid over its defaults.
func (s *ContentService) Section(ctx context.Context, seccion string) (map[string]any, error) {
	out, ok := sectionDefaults(seccion)
	if !ok {
		return nil, common.ErrorNotFound
	}

	block, err := s.repomanager.Content(s.db).Get(ctx, seccion)
	switch {
	case errors.Is(err, common.ErrorNotFound):
	case err != nil:
		return nil, fmt.Errorf("error loading section %s: %w", seccion, err)
	default:
		var stored map[string]any
		if err := json.Unmarshal(block.Valores, &stored); err != nil {
			s.log.Warn(ctx, "ignoring malformed section document", "seccion", seccion, "err", err)
		} else {
			maps.Copy(out, stored)
		}
	}

	if seccion == SectionHome {
		normalizeBenefits(out)
	}
	return out, nil
}

// UpdateSection replaces the stored document of seccion.
func (s *ContentService) UpdateSection(ctx context.Context, seccion string, raw json.RawMessage) (map[string]any, error) {
	if _, ok := sectionDefaults(seccion); !ok {
		return nil, common.ErrorNotFound
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return nil, common.Invalid("valores", "must be a JSON object")
	}

	if seccion == SectionHome {
		normalizeBenefits(doc)
		if err := validateFeaturedConfig(doc["config_destacados"]); err != nil {
			return nil, err
		}
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.repomanager.Content(s.db).Upsert(ctx, seccion, b); err != nil {
		return nil, fmt.Errorf("error saving section %s: %w", seccion, err)
	}
	return s.Section(ctx, seccion)
}

func normalizeBenefits(doc map[string]any) {
	list, ok := doc["beneficios"].([]any)
	if !ok {
		return
	}
	for _, b := range list {
		if m, ok := b.(map[string]any); ok {
			tag, _ := m["icono"].(string)
			m["icono"] = string(icons.Resolve(tag))
		}
	}
}

func validateFeaturedConfig(v any) error {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return common.Invalid("config_destacados", "malformed")
	}
	var slots []FeaturedSlot
	if err := json.Unmarshal(b, &slots); err != nil {
		return common.Invalid("config_destacados", "must be a list of {id, modo}")
	}
	if len(slots) > 3 {
		return common.Invalid("config_destacados", "at most 3 slots")
	}
	for _, sl := range slots {
		if sl.Modo != FeaturedAuto && sl.Modo != FeaturedManual {
			return common.Invalid("config_destacados", "modo must be automatico or manual")
		}
	}
	return nil
}

func featuredSlots(doc map[string]any) []FeaturedSlot {
	b, err := json.Marshal(doc["config_destacados"])
	if err != nil {
		return nil
	}
	var slots []FeaturedSlot
	if err := json.Unmarshal(b, &slots); err != nil {
		return nil
	}
	return slots
}

// Home returns the home section and the materials it highlights.
func (s *ContentService) Home(ctx context.Context, viewer *session.Session) (*HomePage, error) {
	doc, err := s.Section(ctx, SectionHome)
	if err != nil {
		return nil, err
	}
	featured, err := s.catalog.Featured(ctx, featuredSlots(doc), viewer)
	if err != nil {
		return nil, err
	}
	return &HomePage{Content: doc, Featured: featured}, nil
}

// UploadImage stores a site image in the public bucket and returns its URL.
// When replaces is a URL of a previously uploaded image, that object is
// removed once the new one is stored.
func (s *ContentService) UploadImage(ctx context.Context, up *Upload, replaces string) (string, error) {
	if up == nil {
		return "", common.Invalid("imagen", "required")
	}
	if !strings.HasPrefix(up.ContentType, "image/") {
		return "", common.Invalid("imagen", "must be an image")
	}
	_, url, err := s.store.UploadPublic(ctx, "web/"+up.Name, up.ContentType, up.Body, up.Size)
	if err != nil {
		return "", fmt.Errorf("error uploading image: %w", err)
	}
	if key, ok := s.store.KeyFromPublicURL(replaces); ok {
		if err := s.store.RemovePublic(ctx, key); err != nil {
			s.log.Warn(ctx, "failed to remove replaced image", "key", key, "err", err)
		}
	}
	return url, nil
}
