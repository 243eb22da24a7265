package httpapi

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/psicopedagogiando/tienda/internal/server/services"
	"github.com/psicopedagogiando/tienda/internal/server/session"
)

var fatalPage = template.Must(template.New("fatal").Parse(`<!DOCTYPE html>
<html lang="es">
<head><meta charset="utf-8"><title>Atención</title></head>
<body>
<h1>Atención</h1>
<p>{{.Message}}</p>
<p>ID de Pago: <strong>{{.PaymentID}}</strong></p>
</body>
</html>
`))

type fatalReport struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	PaymentID string `json:"payment_id"`
}

// confirmPurchase handles the browser returning from the payment gateway.
// Nothing in the query is trusted beyond selecting which material was paid.
func (h *Handler) confirmPurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Cache-Control", "no-store")

	q := r.URL.Query()
	conf := services.Confirmation{
		PaymentID:         q.Get("payment_id"),
		Status:            q.Get("status"),
		ExternalReference: q.Get("external_reference"),
	}
	sess := session.FromContext(ctx)
	if sess == nil && conf.Status == services.StatusApproved {
		sess = h.resumeSession(w, r)
	}
	res := h.svc.Reconciler.Reconcile(ctx, sess, conf)

	switch res.Outcome() {
	case services.StateRedirectToCatalog:
		http.Redirect(w, r, h.siteURL(h.cfg.CatalogRoute, nil), http.StatusSeeOther)

	case services.StateRedirectToHistory:
		result := "registrada"
		if res.Duplicate {
			result = "duplicada"
		}
		http.Redirect(w, r, h.siteURL(h.cfg.HistoryRoute, url.Values{"compra": {result}}), http.StatusSeeOther)

	case services.StateInProgress:
		// The other attempt is still recording; history shows it once done.
		http.Redirect(w, r, h.siteURL(h.cfg.HistoryRoute, url.Values{"compra": {"en_proceso"}}), http.StatusSeeOther)

	default:
		status := http.StatusInternalServerError
		if errors.Is(res.Err, services.ErrNoSession) {
			status = http.StatusUnauthorized
		}
		h.log.Warn(ctx, "purchase confirmation reported to buyer",
			"payment_id", res.PaymentID,
			"path", res.Path,
			"err", res.Err,
		)
		h.writeFatalReport(w, r, status, res.PaymentID)
	}
}

func (h *Handler) writeFatalReport(w http.ResponseWriter, r *http.Request, status int, paymentID string) {
	report := fatalReport{Status: "error", Message: services.FatalMessage, PaymentID: paymentID}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, status, report)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = fatalPage.Execute(w, report)
}

func (h *Handler) purchaseHistory(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Purchases.History(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		h.writeMappedError(r.Context(), w, "purchase_history", err)
		return
	}
	writeSuccess(w, http.StatusOK, toHistoryResponse(items))
}

// siteURL resolves a front-end route against the configured site origin.
func (h *Handler) siteURL(route string, query url.Values) string {
	u := strings.TrimRight(h.cfg.SiteOrigin, "/") + "/" + strings.TrimLeft(route, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
