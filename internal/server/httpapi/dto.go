package httpapi

import (
	"time"

	"github.com/psicopedagogiando/tienda/internal/server/models"
	"github.com/psicopedagogiando/tienda/internal/server/pricing"
	"github.com/psicopedagogiando/tienda/internal/server/services"
)

type registerRequest struct {
	Nombre          string `json:"nombre"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	Password2       string `json:"password2"`
	FechaNacimiento string `json:"fecha_nacimiento"`
	Pais            string `json:"pais"`
	Telefono        string `json:"telefono"`
	AceptaTerminos  bool   `json:"acepta_terminos"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// refreshRequest is optional on refresh and logout; browsers send the
// refresh token cookie instead.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type profileRequest struct {
	Email    string `json:"email"`
	Telefono string `json:"telefono"`
	Pais     string `json:"pais"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Nombre          string `json:"nombre"`
	Telefono        string `json:"telefono"`
	Pais            string `json:"pais"`
	FechaNacimiento string `json:"fecha_nacimiento,omitempty"`
	Rol             string `json:"rol"`
}

func toUserResponse(u *models.User) userResponse {
	out := userResponse{
		ID:       u.ID,
		Email:    u.Email,
		Nombre:   u.Nombre,
		Telefono: u.Telefono,
		Pais:     u.Pais,
		Rol:      u.Rol,
	}
	if u.FechaNac != nil {
		out.FechaNacimiento = u.FechaNac.Format(time.DateOnly)
	}
	return out
}

type materialResponse struct {
	ID                  string  `json:"id"`
	Nombre              string  `json:"nombre"`
	Descripcion         string  `json:"descripcion"`
	Edad                string  `json:"edad"`
	Precio              float64 `json:"precio"`
	PrecioFinal         float64 `json:"precio_final"`
	PrecioMostrado      int64   `json:"precio_mostrado"`
	EnOferta            bool    `json:"en_oferta"`
	PorcentajeDescuento int     `json:"porcentaje_descuento"`
	PreviewURL          string  `json:"preview_url,omitempty"`
	ImagenPortada       string  `json:"imagen_portada,omitempty"`
	Comprado            bool    `json:"comprado"`
	Ventas              *int64  `json:"ventas,omitempty"`
	CreatedAt           string  `json:"created_at"`
}

func toMaterialResponse(m *models.Material) materialResponse {
	final := pricing.ForMaterial(m)
	return materialResponse{
		ID:                  m.ID,
		Nombre:              m.Nombre,
		Descripcion:         m.Descripcion,
		Edad:                m.Edad,
		Precio:              pricing.Units(m.PrecioCents),
		PrecioFinal:         pricing.Units(final),
		PrecioMostrado:      pricing.DisplayPrice(final),
		EnOferta:            m.EnOferta,
		PorcentajeDescuento: m.PorcentajeDescuento,
		PreviewURL:          m.PreviewURL,
		ImagenPortada:       m.ImagenPortada,
		CreatedAt:           m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toCatalogItemResponse(it *services.CatalogItem) *materialResponse {
	if it == nil {
		return nil
	}
	out := toMaterialResponse(it.Material)
	out.Comprado = it.Purchased
	out.Ventas = it.Sales
	return &out
}

func toCatalogResponse(items []*services.CatalogItem) []*materialResponse {
	out := make([]*materialResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toCatalogItemResponse(it))
	}
	return out
}

type purchaseResponse struct {
	ID                 string  `json:"id"`
	MaterialID         string  `json:"material_id"`
	PaymentID          string  `json:"payment_id"`
	Status             string  `json:"status"`
	NombreMaterial     string  `json:"nombre_material"`
	PrecioPagado       float64 `json:"precio_pagado"`
	Fecha              string  `json:"fecha"`
	MaterialDisponible *bool   `json:"material_disponible,omitempty"`
	ImagenPortada      string  `json:"imagen_portada,omitempty"`
}

func toPurchaseResponse(p *models.Purchase) purchaseResponse {
	return purchaseResponse{
		ID:             p.ID,
		MaterialID:     p.MaterialID,
		PaymentID:      p.PaymentID,
		Status:         p.Status,
		NombreMaterial: p.NombreMaterial,
		PrecioPagado:   pricing.Units(p.PrecioPagadoCents),
		Fecha:          p.Fecha.UTC().Format(time.RFC3339),
	}
}

func toHistoryResponse(items []*models.PurchaseHistoryItem) []purchaseResponse {
	out := make([]purchaseResponse, 0, len(items))
	for _, it := range items {
		p := toPurchaseResponse(&it.Purchase)
		available := it.MaterialAvailable
		p.MaterialDisponible = &available
		p.ImagenPortada = it.ImagenPortada
		out = append(out, p)
	}
	return out
}

type postResponse struct {
	ID          string `json:"id"`
	Tipo        string `json:"tipo"`
	Titulo      string `json:"titulo"`
	Contenido   string `json:"contenido"`
	URLMedia    string `json:"url_media,omitempty"`
	LinkExterno string `json:"link_externo,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toPostResponse(p *models.Post) postResponse {
	return postResponse{
		ID:          p.ID,
		Tipo:        p.Tipo,
		Titulo:      p.Titulo,
		Contenido:   p.Contenido,
		URLMedia:    p.URLMedia,
		LinkExterno: p.LinkExterno,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type postPageResponse struct {
	Posts      []postResponse `json:"posts"`
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	Total      int            `json:"total"`
}

func toPostPageResponse(pp *services.PostPage) postPageResponse {
	out := postPageResponse{
		Posts:      make([]postResponse, 0, len(pp.Posts)),
		Page:       pp.Page,
		TotalPages: pp.TotalPages,
		Total:      pp.Total,
	}
	for _, p := range pp.Posts {
		out.Posts = append(out.Posts, toPostResponse(p))
	}
	return out
}

type homeResponse struct {
	Contenido  map[string]any      `json:"contenido"`
	Destacados []*materialResponse `json:"destacados"`
}
