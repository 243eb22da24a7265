package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/server/models"
	"github.com/psicopedagogiando/tienda/internal/server/services"
	"github.com/psicopedagogiando/tienda/internal/server/session"
)

func (h *Handler) listMaterials(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.MaterialFilter{
		Query: strings.TrimSpace(q.Get("q")),
		Edad:  strings.TrimSpace(q.Get("edad")),
	}
	items, err := h.svc.Catalog.List(r.Context(), filter, session.FromContext(r.Context()))
	if err != nil {
		h.writeMappedError(r.Context(), w, "list_materials", err)
		return
	}
	writeSuccess(w, http.StatusOK, toCatalogResponse(items))
}

func (h *Handler) getMaterial(w http.ResponseWriter, r *http.Request) {
	it, err := h.svc.Catalog.Get(r.Context(), chi.URLParam(r, "id"), session.FromContext(r.Context()))
	if err != nil {
		h.writeMappedError(r.Context(), w, "get_material", err)
		return
	}
	writeSuccess(w, http.StatusOK, toCatalogItemResponse(it))
}

func (h *Handler) createMaterial(w http.ResponseWriter, r *http.Request) {
	in, cleanup, err := materialInputFromForm(w, r)
	defer cleanup()
	if err != nil {
		h.writeMappedError(r.Context(), w, "create_material", err)
		return
	}
	m, err := h.svc.Catalog.Create(r.Context(), in)
	if err != nil {
		h.writeMappedError(r.Context(), w, "create_material", err)
		return
	}
	h.log.Info(r.Context(), "material created", "material_id", m.ID)
	writeSuccess(w, http.StatusCreated, toMaterialResponse(m))
}

func (h *Handler) updateMaterial(w http.ResponseWriter, r *http.Request) {
	in, cleanup, err := materialInputFromForm(w, r)
	defer cleanup()
	if err != nil {
		h.writeMappedError(r.Context(), w, "update_material", err)
		return
	}
	m, err := h.svc.Catalog.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeMappedError(r.Context(), w, "update_material", err)
		return
	}
	writeSuccess(w, http.StatusOK, toMaterialResponse(m))
}

func (h *Handler) deleteMaterial(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Catalog.Delete(r.Context(), id); err != nil {
		h.writeMappedError(r.Context(), w, "delete_material", err)
		return
	}
	h.log.Info(r.Context(), "material deleted", "material_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// checkout starts a gateway payment and returns the URL the browser must be
// sent to.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.Purchases.Checkout(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeMappedError(r.Context(), w, "checkout", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"init_point": url})
}

func (h *Handler) simulatePurchase(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Reconciler.Simulate(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeMappedError(r.Context(), w, "simulate_purchase", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toPurchaseResponse(p))
}

// download answers with a short-lived signed URL of the full material. With
// ?redirect=1 the browser is sent there directly.
func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.Purchases.Download(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeMappedError(r.Context(), w, "download", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	if parseBool(r.URL.Query().Get("redirect")) {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"url": url})
}

func materialInputFromForm(w http.ResponseWriter, r *http.Request) (services.MaterialInput, func(), error) {
	var in services.MaterialInput
	closers := []func(){}
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	if err := parseMultipart(w, r); err != nil {
		return in, cleanup, err
	}

	precio, err := parseCents("precio", r.FormValue("precio"))
	if err != nil {
		return in, cleanup, err
	}
	descuento := 0
	if raw := strings.TrimSpace(r.FormValue("porcentaje_descuento")); raw != "" {
		if descuento, err = strconv.Atoi(raw); err != nil {
			return in, cleanup, common.Invalid("porcentaje_descuento", "not a number")
		}
	}

	in = services.MaterialInput{
		Nombre:              r.FormValue("nombre"),
		Descripcion:         r.FormValue("descripcion"),
		Edad:                strings.TrimSpace(r.FormValue("edad")),
		PrecioCents:         precio,
		EnOferta:            parseBool(r.FormValue("en_oferta")),
		PorcentajeDescuento: descuento,
	}

	for field, dst := range map[string]**services.Upload{
		"archivo": &in.Archivo,
		"portada": &in.Portada,
		"preview": &in.Preview,
	} {
		up, closeFn, err := formUpload(r, field)
		closers = append(closers, closeFn)
		if err != nil {
			return in, cleanup, err
		}
		*dst = up
	}
	return in, cleanup, nil
}
