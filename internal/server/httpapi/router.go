package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/psicopedagogiando/tienda/internal/server/payments"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)
	r.Use(h.sessionMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get(payments.ConfirmPath, h.confirmPurchase)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(h.rateLimit)
			r.Post("/registro", h.register)
			r.Post("/login", h.login)
			r.Post("/refresh", h.refresh)
			r.Post("/logout", h.logout)
		})

		r.Get("/materiales", h.listMaterials)
		r.Get("/materiales/{id}", h.getMaterial)
		r.Get("/contenido/{seccion}", h.getSection)
		r.Get("/home", h.home)
		r.Get("/publicaciones", h.listPosts)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Get("/perfil", h.getProfile)
			r.Patch("/perfil", h.updateProfile)
			r.Post("/materiales/{id}/comprar", h.checkout)
			r.Get("/materiales/{id}/descarga", h.download)
			r.Get("/compras", h.purchaseHistory)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Post("/materiales", h.createMaterial)
				r.Put("/materiales/{id}", h.updateMaterial)
				r.Delete("/materiales/{id}", h.deleteMaterial)
				r.Post("/materiales/{id}/simular-compra", h.simulatePurchase)
				r.Put("/contenido/{seccion}", h.updateSection)
				r.Post("/contenido/imagen", h.uploadImage)
				r.Post("/publicaciones", h.createPost)
				r.Put("/publicaciones/{id}", h.updatePost)
				r.Delete("/publicaciones/{id}", h.deletePost)
			})
		})
	})

	return r
}
