package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/server/services"
	"github.com/psicopedagogiando/tienda/internal/server/session"
)

func (h *Handler) getSection(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Content.Section(r.Context(), chi.URLParam(r, "seccion"))
	if err != nil {
		h.writeMappedError(r.Context(), w, "get_section", err)
		return
	}
	writeSuccess(w, http.StatusOK, doc)
}

func (h *Handler) updateSection(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeBody(w, r, &raw); err != nil {
		h.writeValidationError(r.Context(), w, "update_section", err)
		return
	}
	doc, err := h.svc.Content.UpdateSection(r.Context(), chi.URLParam(r, "seccion"), raw)
	if err != nil {
		h.writeMappedError(r.Context(), w, "update_section", err)
		return
	}
	writeSuccess(w, http.StatusOK, doc)
}

// uploadImage stores a site image. The optional "reemplaza" field names the
// URL of the image it replaces.
func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		h.writeMappedError(r.Context(), w, "upload_image", err)
		return
	}
	up, closeFn, err := formUpload(r, "imagen")
	defer closeFn()
	if err != nil {
		h.writeMappedError(r.Context(), w, "upload_image", err)
		return
	}
	url, err := h.svc.Content.UploadImage(r.Context(), up, r.FormValue("reemplaza"))
	if err != nil {
		h.writeMappedError(r.Context(), w, "upload_image", err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]string{"url": url})
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Content.Home(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		h.writeMappedError(r.Context(), w, "home", err)
		return
	}
	writeSuccess(w, http.StatusOK, homeResponse{
		Contenido:  page.Content,
		Destacados: toCatalogResponse(page.Featured),
	})
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.svc.Content.Posts(r.Context(), strings.TrimSpace(q.Get("q")), parseIntDefault(q.Get("page"), 1))
	if err != nil {
		h.writeMappedError(r.Context(), w, "list_posts", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPostPageResponse(page))
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	in, closeFn, err := postInputFromForm(w, r)
	defer closeFn()
	if err != nil {
		h.writeMappedError(r.Context(), w, "create_post", err)
		return
	}
	p, err := h.svc.Content.CreatePost(r.Context(), in)
	if err != nil {
		h.writeMappedError(r.Context(), w, "create_post", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toPostResponse(p))
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) {
	in, closeFn, err := postInputFromForm(w, r)
	defer closeFn()
	if err != nil {
		h.writeMappedError(r.Context(), w, "update_post", err)
		return
	}
	p, err := h.svc.Content.UpdatePost(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeMappedError(r.Context(), w, "update_post", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPostResponse(p))
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Content.DeletePost(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeMappedError(r.Context(), w, "delete_post", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func postInputFromForm(w http.ResponseWriter, r *http.Request) (services.PostInput, func(), error) {
	if err := parseMultipart(w, r); err != nil {
		return services.PostInput{}, func() {}, err
	}
	img, closeFn, err := formUpload(r, "imagen")
	if err != nil {
		return services.PostInput{}, closeFn, err
	}
	if img != nil && !strings.HasPrefix(img.ContentType, "image/") {
		return services.PostInput{}, closeFn, common.Invalid("imagen", "must be an image")
	}
	return services.PostInput{
		Tipo:        strings.TrimSpace(r.FormValue("tipo")),
		Titulo:      r.FormValue("titulo"),
		Contenido:   r.FormValue("contenido"),
		URLMedia:    strings.TrimSpace(r.FormValue("url_media")),
		LinkExterno: strings.TrimSpace(r.FormValue("link_externo")),
		Imagen:      img,
	}, closeFn, nil
}
