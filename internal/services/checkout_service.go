package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"flipacademy/internal/models"
	"flipacademy/internal/repositories"
	"flipacademy/pkg/broadcast"
)

// Popup parameters returned on the wallet path. The fixed name makes repeated
// opens focus the existing window instead of spawning duplicates.
const (
	PopupWindowName = "mp_checkout"
	PopupWidth      = 480
	PopupHeight     = 720
)

// TransferDiscount is the bank-transfer incentive applied to the cart total.
const TransferDiscount = 0.10

// PaymentProvider is the slice of the payment-provider API the checkout flow
// depends on.
type PaymentProvider interface {
	CreatePreference(ctx context.Context, req models.PreferenceRequest) (*models.PreferenceResponse, error)
	ProcessPayment(ctx context.Context, form models.CardFormData, externalReference string) (*models.PaymentResult, error)
	GetPayment(ctx context.Context, paymentID string) (*models.PaymentResult, error)
	SearchByReference(ctx context.Context, externalReference string) (*models.PaymentResult, error)
}

// Broadcaster publishes cross-session payment-success notifications. It may
// be nil when the message broker is unavailable; the polling loop and the
// success-signal key still converge on the same commit.
type Broadcaster interface {
	PublishPaymentCompleted(msg broadcast.PaymentMessage) error
}

// EntitlementCommitter is the commit interface the orchestrator calls at most
// once per successful payment.
type EntitlementCommitter interface {
	PurchaseItems(ctx context.Context, userID string, items []models.PurchaseItem, clearCart bool) error
	CreateOrder(userID string, items []models.OrderItem, total float64, method, status string, dni, address, zipCode string) (*models.Order, error)
}

// CheckoutConfig tunes the confirmation loop. Zero values get defaults
// matching the production flow: 5s polls, 20 attempts, 1h resume window.
type CheckoutConfig struct {
	PollInterval   time.Duration
	MaxAttempts    int
	Freshness      time.Duration
	RejectCooldown time.Duration
}

func (c CheckoutConfig) withDefaults() CheckoutConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 20
	}
	if c.Freshness <= 0 {
		c.Freshness = time.Hour
	}
	if c.RejectCooldown <= 0 {
		c.RejectCooldown = 2 * time.Second
	}
	return c
}

// checkoutSession is the lifecycle-scoped controller for one user's checkout.
// All payment-state mutation goes through it; there is no ambient global
// state.
type checkoutSession struct {
	userID string

	mu         sync.Mutex
	state      models.CheckoutState
	preference *models.PreferenceResponse
	pending    *models.PendingPayment
	directID   string // course id for direct single-item purchases
	lastError  string
	watcher    *PaymentWatcher

	// committing is the single commit guard: set before any asynchronous
	// commit work begins, cleared only after the commit (or its
	// rejection-path equivalent) fully completes. Any signal source
	// observing a terminal status while it is set must no-op.
	committing atomic.Bool
}

// resetIfTerminal returns the session to IDLE when a previous payment already
// reached a terminal state, so the next attempt gets its own commit guard and
// preference. After a rejection the cooldown timer still owns the guard
// release. Caller holds sess.mu.
func (sess *checkoutSession) resetIfTerminal() {
	switch sess.state {
	case models.StateApproved, models.StateRejected, models.StateTimedOut, models.StateCancelled:
	default:
		return
	}
	if sess.state == models.StateApproved {
		sess.committing.Store(false)
	}
	sess.state = models.StateIdle
	sess.preference = nil
	sess.pending = nil
	sess.directID = ""
	sess.lastError = ""
}

// CheckoutService is the payment confirmation orchestrator. Five independent
// sources can race to declare a payment approved (the polling ticker, the
// wake/visibility signal, the broadcast consumer, the success-signal key and
// the return-URL callback); they all funnel through ReportApproved, which
// commits entitlements at most once per payment.
type CheckoutService struct {
	provider     PaymentProvider
	pendings     repositories.PendingPaymentStore
	entitlements EntitlementCommitter
	cart         *CartService
	catalog      repositories.CatalogRepository
	broadcaster  Broadcaster
	cfg          CheckoutConfig

	mu       sync.Mutex
	sessions map[string]*checkoutSession
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(provider PaymentProvider, pendings repositories.PendingPaymentStore, entitlements EntitlementCommitter, cart *CartService, catalog repositories.CatalogRepository, broadcaster Broadcaster, cfg CheckoutConfig) *CheckoutService {
	return &CheckoutService{
		provider:     provider,
		pendings:     pendings,
		entitlements: entitlements,
		cart:         cart,
		catalog:      catalog,
		broadcaster:  broadcaster,
		cfg:          cfg.withDefaults(),
		sessions:     make(map[string]*checkoutSession),
	}
}

func (s *CheckoutService) session(userID string) *checkoutSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &checkoutSession{userID: userID, state: models.StateIdle}
		s.sessions[userID] = sess
	}
	return sess
}

// Preference returns the payment preference for the session, creating it on
// first use. The provider call is gated on the cached preference: entering
// the payment step repeatedly must not spam the endpoint.
func (s *CheckoutService) Preference(ctx context.Context, userID, directCourseID, baseURL string) (*models.PreferenceResponse, error) {
	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.resetIfTerminal()

	if sess.preference != nil && sess.preference.ID != "" && sess.preference.InitPoint != "" && sess.directID == directCourseID {
		return sess.preference, nil
	}

	items, err := s.checkoutItems(ctx, userID, directCourseID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("cart is empty")
	}

	pref, err := s.provider.CreatePreference(ctx, models.PreferenceRequest{Items: items, BaseURL: baseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize payment: %w", err)
	}

	sess.preference = pref
	sess.directID = directCourseID
	return pref, nil
}

// checkoutItems resolves the gateway line items for a cart or direct purchase.
func (s *CheckoutService) checkoutItems(ctx context.Context, userID, directCourseID string) ([]models.CheckoutItem, error) {
	if directCourseID != "" {
		course, err := s.catalog.GetCourseByID(directCourseID)
		if err != nil {
			return nil, err
		}
		return []models.CheckoutItem{{ID: course.ID, Title: course.Title, Price: Round2(course.Price), Quantity: 1}}, nil
	}
	return s.cart.CheckoutItems(ctx, userID)
}

// purchaseList resolves what a successful payment grants.
func (s *CheckoutService) purchaseList(ctx context.Context, userID, directCourseID string) ([]models.PurchaseItem, error) {
	if directCourseID != "" {
		return []models.PurchaseItem{{ID: directCourseID, Type: models.ItemCourse}}, nil
	}
	return s.cart.PurchaseList(ctx, userID)
}

// SubmissionOutcome is what the checkout UI needs after a card submission.
type SubmissionOutcome struct {
	Status     string              `json:"status"`
	Detail     string              `json:"detail,omitempty"`
	PaymentID  string              `json:"payment_id,omitempty"`
	State      models.CheckoutState `json:"state"`
	TicketURL  string              `json:"ticket_url,omitempty"`
	RedirectTo string              `json:"redirect_to,omitempty"`
}

// SubmitCard processes widget-collected card form data. An approved response
// commits immediately; an in-process one records the payment id and starts
// the confirmation watcher; anything else is a rejection the user may retry.
func (s *CheckoutService) SubmitCard(ctx context.Context, userID string, form models.CardFormData) (*SubmissionOutcome, error) {
	sess := s.session(userID)

	sess.mu.Lock()
	if sess.state == models.StateAwaiting || sess.state == models.StateSubmitting {
		sess.mu.Unlock()
		return nil, fmt.Errorf("a payment is already in progress")
	}
	sess.resetIfTerminal()
	sess.state = models.StateSubmitting
	var externalReference string
	if sess.preference != nil {
		externalReference = sess.preference.ExternalReference
	}
	directID := sess.directID
	sess.mu.Unlock()

	result, err := s.provider.ProcessPayment(ctx, form, externalReference)
	if err != nil {
		sess.mu.Lock()
		sess.state = models.StateIdle
		sess.lastError = err.Error()
		sess.mu.Unlock()
		return nil, fmt.Errorf("failed to process payment: %w", err)
	}

	paymentID := strconv.FormatInt(result.ID, 10)

	switch result.Status {
	case models.PaymentApproved:
		if err := s.ReportApproved(ctx, userID, paymentID); err != nil {
			return nil, err
		}
		return &SubmissionOutcome{
			Status:     result.Status,
			PaymentID:  paymentID,
			State:      models.StateApproved,
			RedirectTo: "/pago_apro",
		}, nil

	case models.PaymentInProcess, models.PaymentPending, models.PaymentCreated:
		items, err := s.purchaseList(ctx, userID, directID)
		if err != nil {
			return nil, err
		}
		record := &models.PendingPayment{
			PaymentID:         paymentID,
			ExternalReference: externalReference,
			InProgress:        true,
			StartedAt:         time.Now().UnixMilli(),
			Attempts:          0,
			Items:             items,
			Direct:            directID != "",
		}
		if err := s.beginAwaiting(ctx, sess, record); err != nil {
			return nil, err
		}

		outcome := &SubmissionOutcome{
			Status:    result.Status,
			Detail:    result.StatusDetail,
			PaymentID: paymentID,
			State:     models.StateAwaiting,
		}
		// Offline/wallet methods hand back a ticket to open alongside.
		if result.PointOfInteraction != nil {
			outcome.TicketURL = result.PointOfInteraction.TransactionData.TicketURL
		}
		return outcome, nil

	default:
		s.clearPending(ctx, sess)
		sess.mu.Lock()
		sess.state = models.StateRejected
		sess.lastError = "payment " + result.Status
		sess.mu.Unlock()
		return &SubmissionOutcome{
			Status: result.Status,
			Detail: result.StatusDetail,
			State:  models.StateRejected,
		}, nil
	}
}

// WalletOutcome tells the UI where to send the payer and how to open the
// popup so repeated opens reuse the same window.
type WalletOutcome struct {
	InitPoint  string               `json:"init_point"`
	WindowName string               `json:"window_name"`
	Width      int                  `json:"width"`
	Height     int                  `json:"height"`
	State      models.CheckoutState `json:"state"`
}

// SubmitWallet starts a wallet/redirect payment: no payment id exists yet,
// only the preference's external reference, and the popup (not this session)
// completes the payment. The session optimistically enters the waiting state.
func (s *CheckoutService) SubmitWallet(ctx context.Context, userID string) (*WalletOutcome, error) {
	sess := s.session(userID)

	sess.mu.Lock()
	if sess.state == models.StateAwaiting {
		sess.mu.Unlock()
		return nil, fmt.Errorf("a payment is already in progress")
	}
	sess.resetIfTerminal()
	pref := sess.preference
	directID := sess.directID
	sess.mu.Unlock()

	if pref == nil || pref.InitPoint == "" {
		return nil, fmt.Errorf("no payment preference; enter the payment step first")
	}

	items, err := s.purchaseList(ctx, userID, directID)
	if err != nil {
		return nil, err
	}
	record := &models.PendingPayment{
		ExternalReference: pref.ExternalReference,
		InProgress:        true,
		StartedAt:         time.Now().UnixMilli(),
		Attempts:          0,
		Items:             items,
		Direct:            directID != "",
	}
	if err := s.beginAwaiting(ctx, sess, record); err != nil {
		return nil, err
	}

	return &WalletOutcome{
		InitPoint:  pref.InitPoint,
		WindowName: PopupWindowName,
		Width:      PopupWidth,
		Height:     PopupHeight,
		State:      models.StateAwaiting,
	}, nil
}

// beginAwaiting persists the pending record and mounts the watcher.
func (s *CheckoutService) beginAwaiting(ctx context.Context, sess *checkoutSession, record *models.PendingPayment) error {
	if err := s.pendings.Save(ctx, sess.userID, record, s.cfg.Freshness); err != nil {
		return err
	}

	sess.mu.Lock()
	sess.pending = record
	sess.state = models.StateAwaiting
	sess.lastError = ""
	s.mountWatcher(sess)
	sess.mu.Unlock()
	return nil
}

// mountWatcher replaces the session's watcher. Caller holds sess.mu.
func (s *CheckoutService) mountWatcher(sess *checkoutSession) {
	if sess.watcher != nil {
		sess.watcher.Stop()
	}
	sess.watcher = newPaymentWatcher(s, sess.userID, s.cfg.PollInterval)
	go sess.watcher.Run()
}

// PollNow performs one status check for an awaiting session. The watcher
// calls it on every tick; the wake endpoint calls it when the user's tab
// becomes visible.
func (s *CheckoutService) PollNow(ctx context.Context, userID string) error {
	sess := s.session(userID)

	sess.mu.Lock()
	if sess.state != models.StateAwaiting || sess.pending == nil {
		sess.mu.Unlock()
		return nil
	}
	sess.mu.Unlock()

	// The success-signal key is the broadcast fallback: a write means an
	// external payment for this user succeeded. Consume (and thereby clear)
	// it before spending a provider call.
	if paymentID, ok, err := s.pendings.ConsumeSignal(ctx, userID); err == nil && ok {
		return s.ReportApproved(ctx, userID, paymentID)
	}

	// The attempt counter increments on the session's own record, under its
	// lock: a wake-triggered poll racing a ticker poll must not lose an
	// increment, or the bounded wait stretches past the ceiling.
	sess.mu.Lock()
	if sess.state != models.StateAwaiting || sess.pending == nil {
		sess.mu.Unlock()
		return nil
	}
	sess.pending.Attempts++
	pending := *sess.pending
	sess.mu.Unlock()
	s.persistPending(ctx, userID, &pending)

	var (
		result *models.PaymentResult
		err    error
	)
	if pending.PaymentID != "" {
		result, err = s.provider.GetPayment(ctx, pending.PaymentID)
	} else {
		result, err = s.provider.SearchByReference(ctx, pending.ExternalReference)
	}
	if err != nil {
		// Transient failures must not abort the flow; the next tick retries.
		log.Printf("Payment status check failed for user %s (attempt %d): %v", userID, pending.Attempts, err)
		return s.enforceCeiling(ctx, sess, &pending)
	}

	if result == nil {
		// Nothing under the reference yet; the popup may still be open.
		return s.enforceCeiling(ctx, sess, &pending)
	}

	// A poll by reference that surfaces a payment id adopts it: subsequent
	// polls query by id.
	if pending.PaymentID == "" && result.ID != 0 {
		adopted := strconv.FormatInt(result.ID, 10)
		sess.mu.Lock()
		if sess.pending != nil && sess.pending.PaymentID == "" {
			sess.pending.PaymentID = adopted
		}
		sess.mu.Unlock()
		pending.PaymentID = adopted
		s.persistPending(ctx, userID, &pending)
		log.Printf("Adopted payment id %s for user %s (reference %s)", adopted, userID, pending.ExternalReference)
	}

	switch result.Status {
	case models.PaymentApproved, models.PaymentAccredited:
		return s.ReportApproved(ctx, userID, pending.PaymentID)
	case models.PaymentRejected:
		s.rejectPending(ctx, sess, "payment rejected")
		return nil
	default:
		return s.enforceCeiling(ctx, sess, &pending)
	}
}

// persistPending saves the record with whatever remains of its freshness
// window.
func (s *CheckoutService) persistPending(ctx context.Context, userID string, pending *models.PendingPayment) {
	remaining := s.cfg.Freshness - time.Since(time.UnixMilli(pending.StartedAt))
	if remaining <= 0 {
		remaining = time.Minute
	}
	if err := s.pendings.Save(ctx, userID, pending, remaining); err != nil {
		log.Printf("Warning: failed to persist pending payment for user %s: %v", userID, err)
	}
}

// enforceCeiling forces TIMED_OUT once the attempt budget is spent.
func (s *CheckoutService) enforceCeiling(ctx context.Context, sess *checkoutSession, pending *models.PendingPayment) error {
	if pending.Attempts < s.cfg.MaxAttempts {
		return nil
	}

	s.clearPending(ctx, sess)
	sess.mu.Lock()
	sess.state = models.StateTimedOut
	sess.lastError = "payment confirmation timed out; verify the payment with the provider"
	s.unmountWatcher(sess)
	sess.mu.Unlock()

	log.Printf("Payment confirmation timed out for user %s after %d attempts", sess.userID, pending.Attempts)
	return nil
}

// rejectPending handles a definitive rejection from any path. The commit
// guard is held during cleanup and released after a short cooldown so a
// retry can proceed but a racing approval signal cannot double-commit.
func (s *CheckoutService) rejectPending(ctx context.Context, sess *checkoutSession, detail string) {
	if !sess.committing.CompareAndSwap(false, true) {
		return
	}

	s.clearPending(ctx, sess)
	sess.mu.Lock()
	sess.state = models.StateRejected
	sess.lastError = detail
	s.unmountWatcher(sess)
	sess.mu.Unlock()

	time.AfterFunc(s.cfg.RejectCooldown, func() {
		sess.committing.Store(false)
	})
}

// ReportApproved is the single entry point for every "payment approved"
// signal: polling, broadcast channel, success-signal key, return-URL
// callback and immediate card approval. The commit guard makes the
// entitlement commit execute exactly once no matter how many sources fire.
func (s *CheckoutService) ReportApproved(ctx context.Context, userID, paymentRef string) error {
	sess := s.session(userID)

	if !sess.committing.CompareAndSwap(false, true) {
		return nil
	}

	items, direct, err := s.commitPlan(ctx, sess)
	if err != nil {
		sess.committing.Store(false)
		return err
	}

	if err := s.entitlements.PurchaseItems(ctx, userID, items, !direct); err != nil {
		sess.committing.Store(false)
		return fmt.Errorf("failed to commit purchase: %w", err)
	}

	s.clearPending(ctx, sess)
	sess.mu.Lock()
	sess.state = models.StateApproved
	sess.pending = nil
	sess.preference = nil
	sess.lastError = ""
	s.unmountWatcher(sess)
	sess.mu.Unlock()

	// The guard stays set until the user starts the next checkout: any late
	// signal for this payment must no-op, while a new payment attempt
	// re-arms it through resetIfTerminal.

	log.Printf("Payment %s approved for user %s; entitlements committed", paymentRef, userID)

	if s.broadcaster != nil {
		err := s.broadcaster.PublishPaymentCompleted(broadcast.PaymentMessage{
			UserID:    userID,
			PaymentID: paymentRef,
			Status:    models.PaymentApproved,
		})
		if err != nil {
			log.Printf("Warning: failed to broadcast payment completion for user %s: %v", userID, err)
		}
	}
	return nil
}

// commitPlan resolves what an approval grants: the persisted record first,
// falling back to the current cart for sessions without one.
func (s *CheckoutService) commitPlan(ctx context.Context, sess *checkoutSession) ([]models.PurchaseItem, bool, error) {
	sess.mu.Lock()
	pending := sess.pending
	directID := sess.directID
	sess.mu.Unlock()

	if pending == nil {
		pending, _ = s.pendings.Load(ctx, sess.userID)
	}
	if pending != nil && len(pending.Items) > 0 {
		return pending.Items, pending.Direct, nil
	}

	items, err := s.purchaseList(ctx, sess.userID, directID)
	if err != nil {
		return nil, false, err
	}
	if len(items) == 0 {
		return nil, false, fmt.Errorf("nothing to grant for user %s", sess.userID)
	}
	return items, directID != "", nil
}

// clearPending removes the persisted record; every terminal transition does
// this so a reload cannot resume a finished payment.
func (s *CheckoutService) clearPending(ctx context.Context, sess *checkoutSession) {
	if err := s.pendings.Delete(ctx, sess.userID); err != nil {
		log.Printf("Warning: failed to clear pending payment for user %s: %v", sess.userID, err)
	}
}

// unmountWatcher stops the session watcher. Caller holds sess.mu.
func (s *CheckoutService) unmountWatcher(sess *checkoutSession) {
	if sess.watcher != nil {
		sess.watcher.Stop()
		sess.watcher = nil
	}
}

// Cancel abandons client-side tracking of the payment. It does not void a
// payment the provider may have already accepted.
func (s *CheckoutService) Cancel(ctx context.Context, userID string) error {
	sess := s.session(userID)

	s.clearPending(ctx, sess)
	sess.mu.Lock()
	sess.state = models.StateCancelled
	sess.pending = nil
	sess.lastError = ""
	s.unmountWatcher(sess)
	sess.mu.Unlock()

	log.Printf("Checkout cancelled by user %s", userID)
	return nil
}

// Resume restores a persisted pending payment on session mount. Records
// inside the freshness window re-enter the waiting state with a fresh
// attempt budget; stale ones are discarded.
func (s *CheckoutService) Resume(ctx context.Context, userID string) (bool, error) {
	record, err := s.pendings.Load(ctx, userID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	if !record.InProgress || !record.Fresh(time.Now(), s.cfg.Freshness) {
		if err := s.pendings.Delete(ctx, userID); err != nil {
			log.Printf("Warning: failed to discard stale pending payment for user %s: %v", userID, err)
		}
		return false, nil
	}

	// A resumed session gets the full polling budget; the record TTL
	// already bounds total tracking time.
	record.Attempts = 0

	sess := s.session(userID)
	if err := s.beginAwaiting(ctx, sess, record); err != nil {
		return false, err
	}
	log.Printf("Resumed pending payment for user %s (payment %q, reference %q)", userID, record.PaymentID, record.ExternalReference)
	return true, nil
}

// Wake asks for an immediate status check, used when the user's tab becomes
// visible again.
func (s *CheckoutService) Wake(ctx context.Context, userID string) error {
	sess := s.session(userID)

	sess.mu.Lock()
	watcher := sess.watcher
	state := sess.state
	sess.mu.Unlock()

	if state != models.StateAwaiting {
		return nil
	}
	if watcher != nil {
		watcher.Wake()
		return nil
	}
	return s.PollNow(ctx, userID)
}

// StatusView is the orchestrator state exposed to the UI.
type StatusView struct {
	State             models.CheckoutState `json:"state"`
	Attempts          int                  `json:"attempts"`
	PaymentID         string               `json:"payment_id,omitempty"`
	ExternalReference string               `json:"external_reference,omitempty"`
	LastError         string               `json:"last_error,omitempty"`
}

// Status reports the current session state.
func (s *CheckoutService) Status(userID string) StatusView {
	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	view := StatusView{State: sess.state, LastError: sess.lastError}
	if sess.pending != nil {
		view.Attempts = sess.pending.Attempts
		view.PaymentID = sess.pending.PaymentID
		view.ExternalReference = sess.pending.ExternalReference
	}
	return view
}

// HandleCallback processes the provider's return URL. The whole tab (or the
// popup) landed here after a hosted-checkout payment; an approved status is
// treated exactly like a polling-detected approval, and is relayed on both
// cross-session channels for the originating session.
func (s *CheckoutService) HandleCallback(ctx context.Context, userID, status, paymentID, externalReference string) error {
	if status != models.PaymentApproved && status != models.PaymentAccredited {
		log.Printf("Payment callback for user %s with status %q; nothing to commit", userID, status)
		return nil
	}

	// Storage-fallback first so a session on another instance can pick the
	// signal up even if the broker is down.
	if err := s.pendings.SignalSuccess(ctx, userID, paymentID); err != nil {
		log.Printf("Warning: failed to write success signal for user %s: %v", userID, err)
	}
	if s.broadcaster != nil {
		err := s.broadcaster.PublishPaymentCompleted(broadcast.PaymentMessage{
			UserID:            userID,
			PaymentID:         paymentID,
			Status:            status,
			ExternalReference: externalReference,
		})
		if err != nil {
			log.Printf("Warning: failed to broadcast payment callback for user %s: %v", userID, err)
		}
	}

	return s.ReportApproved(ctx, userID, paymentID)
}

// HandleWebhook processes a provider-initiated payment notification. The
// payload only carries a payment id; the current status comes from a fresh
// provider lookup, and the external reference maps the payment back to the
// user whose pending record claims it.
func (s *CheckoutService) HandleWebhook(ctx context.Context, paymentID string) error {
	result, err := s.provider.GetPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("failed to fetch payment %s for webhook: %w", paymentID, err)
	}
	if result == nil {
		return fmt.Errorf("payment %s not found", paymentID)
	}
	if result.Status != models.PaymentApproved && result.Status != models.PaymentAccredited {
		log.Printf("Payment webhook for payment %s with status %q; nothing to commit", paymentID, result.Status)
		return nil
	}

	userID, err := s.pendings.ResolveReference(ctx, result.ExternalReference)
	if err != nil {
		return err
	}
	if userID == "" {
		log.Printf("Payment webhook for payment %s: no session claims reference %q", paymentID, result.ExternalReference)
		return nil
	}
	return s.HandleCallback(ctx, userID, result.Status, paymentID, result.ExternalReference)
}

// HandleBroadcast is the consumer hook for the payment_status channel. It
// must be idempotent with every other approval source.
func (s *CheckoutService) HandleBroadcast(msg broadcast.PaymentMessage) {
	if msg.Status != models.PaymentApproved && msg.Status != models.PaymentAccredited {
		return
	}
	if err := s.ReportApproved(context.Background(), msg.UserID, msg.PaymentID); err != nil {
		log.Printf("Broadcast-triggered commit failed for user %s: %v", msg.UserID, err)
	}
}

// BillingInfo is the validated billing form from the information step.
type BillingInfo struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	DNI       string `json:"dni" validate:"required,max=32"`
	Address   string `json:"address" validate:"required,max=255"`
	ZipCode   string `json:"zip_code" validate:"required,max=16"`
}

// SubmitBankTransfer ends the flow synchronously with a pending order; the
// transfer is reconciled manually against the proof of payment, outside this
// service. The 10% transfer incentive applies to the discounted total.
func (s *CheckoutService) SubmitBankTransfer(ctx context.Context, userID string, billing BillingInfo, directCourseID string) (*models.Order, error) {
	var (
		orderItems []models.OrderItem
		total      float64
	)

	if directCourseID != "" {
		course, err := s.catalog.GetCourseByID(directCourseID)
		if err != nil {
			return nil, err
		}
		orderItems = []models.OrderItem{{ItemID: course.ID, Title: course.Title, Price: course.Price, Type: models.ItemCourse}}
		total = course.Price
	} else {
		summary, err := s.cart.Summary(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(summary.Items) == 0 {
			return nil, fmt.Errorf("cart is empty")
		}
		for _, item := range summary.Items {
			orderItems = append(orderItems, models.OrderItem{ItemID: item.ID, Title: item.Title, Price: item.Price, Type: item.Type})
		}
		total = summary.TotalAfterDiscount
	}

	total = Round2(total * (1 - TransferDiscount))

	order, err := s.entitlements.CreateOrder(userID, orderItems, total, models.MethodTransfer, models.OrderPending, billing.DNI, billing.Address, billing.ZipCode)
	if err != nil {
		return nil, err
	}

	if directCourseID == "" {
		if err := s.cart.Clear(ctx, userID); err != nil {
			log.Printf("Warning: failed to clear cart for user %s after transfer order: %v", userID, err)
		}
	}
	return order, nil
}

// SubmitTestPurchase grants the items directly without a provider round
// trip. Enabled only by configuration, for staging environments.
func (s *CheckoutService) SubmitTestPurchase(ctx context.Context, userID, directCourseID string) error {
	items, err := s.purchaseList(ctx, userID, directCourseID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("cart is empty")
	}
	return s.entitlements.PurchaseItems(ctx, userID, items, directCourseID == "")
}
