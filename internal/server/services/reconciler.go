package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/logging"
	"github.com/psicopedagogiando/tienda/internal/server/events"
	"github.com/psicopedagogiando/tienda/internal/server/latch"
	"github.com/psicopedagogiando/tienda/internal/server/models"
	"github.com/psicopedagogiando/tienda/internal/server/pricing"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/repomanager"
	"github.com/psicopedagogiando/tienda/internal/server/session"
	"github.com/sethvargo/go-retry"
)

// State is a step of purchase confirmation.
type State string

const (
	StateStart             State = "start"
	StateValidatingStatus  State = "validating_status"
	StateCheckingSession   State = "checking_session"
	StateCheckingDuplicate State = "checking_duplicate"
	StateFetchingContext   State = "fetching_context"
	StateComputingPrice    State = "computing_price"
	StateInserting         State = "inserting"

	// Terminal states.
	StateRedirectToCatalog State = "redirect_to_catalog"
	StateRedirectToHistory State = "redirect_to_history"
	StateFatalReport       State = "fatal_report"
	// StateInProgress means another attempt for the same payment still held
	// the latch after the wait. Nothing was read or written.
	StateInProgress State = "in_progress"
)

// How long a confirmation waits for a concurrent attempt on the same payment
// before giving up, and how often it checks.
const (
	DefaultLatchWait = 2 * time.Second
	latchPoll        = 100 * time.Millisecond
)

// StatusApproved is the only gateway status that records a purchase.
const StatusApproved = "approved"

// FatalMessage is shown to a buyer whose payment could not be recorded.
const FatalMessage = "El pago fue exitoso pero hubo un problema al registrarlo. Por favor, contacta a soporte con tu ID de pago."

// Placeholder buyer name for profiles without one.
const UnnamedBuyer = "Usuario sin nombre"

var (
	ErrNoSession           = errors.New("no user session")
	ErrMaterialUnavailable = errors.New("material unavailable")

	errLatchHeld = errors.New("latch held")
)

// Confirmation is the untrusted query the gateway appends to the return URL.
type Confirmation struct {
	PaymentID         string
	Status            string
	ExternalReference string
}

// Result describes how a confirmation ended.
type Result struct {
	Path      []State
	Duplicate bool
	Purchase  *models.Purchase
	PaymentID string
	Err       error
}

// Outcome is the terminal state reached.
func (r *Result) Outcome() State {
	if len(r.Path) == 0 {
		return StateStart
	}
	return r.Path[len(r.Path)-1]
}

func (r *Result) visit(s State) { r.Path = append(r.Path, s) }

func (r *Result) fail(err error) Result {
	r.Err = err
	r.visit(StateFatalReport)
	return *r
}

func (r *Result) end(s State) Result {
	r.visit(s)
	return *r
}

// Reconciler turns a successful gateway return into exactly one stored
// purchase per payment id. The UNIQUE constraint on payment_id is the final
// authority; the latch only spares concurrent duplicates the round trips.
type Reconciler struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	latch       latch.Latch
	publisher   events.Publisher
	log         logging.Logger
	now         func() time.Time
	latchWait   time.Duration
	latchPoll   time.Duration
}

func NewReconciler(db *sql.DB, m repomanager.RepositoryManager, l latch.Latch, p events.Publisher, log logging.Logger) *Reconciler {
	if p == nil {
		p = events.NopPublisher{}
	}
	return &Reconciler{
		db:          db,
		repomanager: m,
		latch:       l,
		publisher:   p,
		log:         log,
		now:         time.Now,
		latchWait:   DefaultLatchWait,
		latchPoll:   latchPoll,
	}
}

// Reconcile records the purchase described by c for the session's user.
// Every failure is reported in the Result; it never panics or returns early
// without a terminal state.
func (r *Reconciler) Reconcile(ctx context.Context, sess *session.Session, c Confirmation) Result {
	res := &Result{PaymentID: strings.TrimSpace(c.PaymentID)}
	res.visit(StateStart)

	res.visit(StateValidatingStatus)
	ref := strings.TrimSpace(c.ExternalReference)
	if c.Status != StatusApproved || ref == "" || res.PaymentID == "" {
		return res.end(StateRedirectToCatalog)
	}

	res.visit(StateCheckingSession)
	if sess == nil || sess.UserID == "" {
		r.log.Warn(ctx, "purchase confirmation without session", "payment_id", res.PaymentID)
		return res.fail(ErrNoSession)
	}

	release, ok := r.acquire(ctx, res.PaymentID)
	if !ok {
		return res.end(StateInProgress)
	}
	defer release()

	return r.record(ctx, res, sess, ref, c.Status)
}

// acquire waits up to latchWait for a concurrent attempt on the same payment
// to finish. The waiter then runs the duplicate check and finds the record
// the other attempt wrote.
func (r *Reconciler) acquire(ctx context.Context, paymentID string) (func(), bool) {
	var release func()
	backoff := retry.WithMaxDuration(r.latchWait, retry.NewConstant(r.latchPoll))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		rel, ok, err := r.latch.TryAcquire(ctx, "compra:"+paymentID)
		if err != nil {
			r.log.Warn(ctx, "latch unavailable, relying on unique constraint", "payment_id", paymentID, "err", err)
		}
		if !ok {
			return retry.RetryableError(errLatchHeld)
		}
		release = rel
		return nil
	})
	if err != nil {
		r.log.Info(ctx, "confirmation still in progress elsewhere", "payment_id", paymentID, "err", err)
		return nil, false
	}
	return release, true
}

func (r *Reconciler) record(ctx context.Context, res *Result, sess *session.Session, materialID, status string) Result {
	purchases := r.repomanager.Purchases(r.db)

	res.visit(StateCheckingDuplicate)
	existing, err := purchases.FindByPaymentID(ctx, res.PaymentID)
	switch {
	case err == nil:
		res.Duplicate = true
		res.Purchase = existing
		return res.end(StateRedirectToHistory)
	case !errors.Is(err, common.ErrorNotFound):
		return r.fatal(ctx, res, fmt.Errorf("error checking payment: %w", err))
	}

	res.visit(StateFetchingContext)
	material, err := r.material(ctx, materialID)
	if err != nil {
		return r.fatal(ctx, res, fmt.Errorf("%w: %v", ErrMaterialUnavailable, err))
	}
	nombre, email, err := r.buyer(ctx, sess)
	if err != nil {
		return r.fatal(ctx, res, fmt.Errorf("error loading buyer profile: %w", err))
	}

	res.visit(StateComputingPrice)
	paid := pricing.ForMaterial(material)

	res.visit(StateInserting)
	created, err := purchases.Create(ctx, &models.Purchase{
		UserID:            sess.UserID,
		MaterialID:        material.ID,
		PaymentID:         res.PaymentID,
		Status:            status,
		NombreUsuario:     nombre,
		EmailUsuario:      email,
		NombreMaterial:    material.Nombre,
		PrecioPagadoCents: paid,
		Fecha:             r.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			r.log.Info(ctx, "concurrent confirmation lost the insert race", "payment_id", res.PaymentID)
			res.Duplicate = true
			return res.end(StateRedirectToHistory)
		}
		return r.fatal(ctx, res, fmt.Errorf("error recording purchase: %w", err))
	}

	res.Purchase = created
	r.log.Info(ctx, "purchase recorded", "payment_id", created.PaymentID, "material_id", created.MaterialID,
		"user_id", created.UserID, "amount_cents", created.PrecioPagadoCents)
	r.publish(ctx, created, false)
	return res.end(StateRedirectToHistory)
}

func (r *Reconciler) fatal(ctx context.Context, res *Result, err error) Result {
	r.log.Error(ctx, "purchase confirmation failed", "payment_id", res.PaymentID, "err", err)
	return res.fail(err)
}

func (r *Reconciler) material(ctx context.Context, id string) (*models.Material, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	return r.repomanager.Materials(r.db).GetByID(ctx, id)
}

// buyer returns the snapshot name and email. A missing profile falls back to
// the placeholder name and the session email.
func (r *Reconciler) buyer(ctx context.Context, sess *session.Session) (string, string, error) {
	nombre, email := "", ""
	u, err := r.repomanager.Users(r.db).GetByID(ctx, sess.UserID)
	switch {
	case err == nil:
		nombre, email = strings.TrimSpace(u.Nombre), strings.TrimSpace(u.Email)
	case !errors.Is(err, common.ErrorNotFound):
		return "", "", err
	}
	if nombre == "" {
		nombre = UnnamedBuyer
	}
	if email == "" {
		email = sess.Email
	}
	return nombre, email, nil
}

func (r *Reconciler) publish(ctx context.Context, p *models.Purchase, simulated bool) {
	err := r.publisher.PublishPurchaseRecorded(ctx, events.PurchaseRecordedEvent{
		PurchaseID:   p.ID,
		UserID:       p.UserID,
		MaterialID:   p.MaterialID,
		PaymentID:    p.PaymentID,
		Status:       p.Status,
		BuyerEmail:   p.EmailUsuario,
		MaterialName: p.NombreMaterial,
		AmountCents:  p.PrecioPagadoCents,
		Simulated:    simulated,
		RecordedAt:   p.Fecha,
	})
	if err != nil {
		r.log.Warn(ctx, "failed to publish purchase event", "payment_id", p.PaymentID, "err", err)
	}
}

// Simulate records a purchase without a gateway payment, for admins testing
// the catalog. It writes the same snapshot fields as a real confirmation
// under a "sim-" payment id.
func (r *Reconciler) Simulate(ctx context.Context, sess *session.Session, materialID string) (*models.Purchase, error) {
	if sess == nil || sess.UserID == "" {
		return nil, common.ErrorUnauthorized
	}
	material, err := r.material(ctx, materialID)
	if err != nil {
		return nil, err
	}
	nombre, email, err := r.buyer(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("error loading buyer profile: %w", err)
	}

	p, err := r.repomanager.Purchases(r.db).Create(ctx, &models.Purchase{
		UserID:            sess.UserID,
		MaterialID:        material.ID,
		PaymentID:         "sim-" + uuid.NewString(),
		Status:            StatusApproved,
		NombreUsuario:     nombre,
		EmailUsuario:      email,
		NombreMaterial:    material.Nombre,
		PrecioPagadoCents: pricing.ForMaterial(material),
		Fecha:             r.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("error recording simulated purchase: %w", err)
	}
	r.log.Info(ctx, "simulated purchase recorded", "payment_id", p.PaymentID, "material_id", p.MaterialID)
	r.publish(ctx, p, true)
	return p, nil
}
