package models

import "time"

// CheckoutState is the orchestrator's state for one checkout session.
type CheckoutState string

const (
	StateIdle       CheckoutState = "IDLE"
	StateSubmitting CheckoutState = "SUBMITTING"
	StateAwaiting   CheckoutState = "AWAITING_EXTERNAL_CONFIRMATION"
	StateApproved   CheckoutState = "APPROVED"
	StateRejected   CheckoutState = "REJECTED"
	StateTimedOut   CheckoutState = "TIMED_OUT"
	StateCancelled  CheckoutState = "CANCELLED"
)

// Terminal reports whether no further transition can leave the state.
func (s CheckoutState) Terminal() bool {
	switch s {
	case StateApproved, StateRejected, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

// Provider payment status vocabulary.
const (
	PaymentApproved   = "approved"
	PaymentAccredited = "accredited"
	PaymentRejected   = "rejected"
	PaymentPending    = "pending"
	PaymentInProcess  = "in_process"
	PaymentCreated    = "created"
)

// PendingPaymentVersion is bumped whenever the persisted record layout
// changes so stale blobs from older deployments are discarded on load.
const PendingPaymentVersion = 1

// PendingPayment is the single in-flight payment record for a checkout
// session. It is persisted as one versioned blob (not loose key/value pairs)
// so a partial write can never leave half a record behind. The JSON field
// names are load-bearing: resume-on-reload reads them back.
type PendingPayment struct {
	Version           int    `json:"version"`
	PaymentID         string `json:"pendingPaymentId,omitempty"`
	ExternalReference string `json:"pendingExternalReference,omitempty"`
	InProgress        bool   `json:"isPaymentInProgress"`
	StartedAt         int64  `json:"paymentTimestamp"` // unix milliseconds
	Attempts          int    `json:"attemptsMade"`

	// What to grant when the payment is confirmed. Carried in the record so
	// a resumed session can commit without reconstructing client state.
	Items  []PurchaseItem `json:"items,omitempty"`
	Direct bool           `json:"directPurchase,omitempty"`
}

// Fresh reports whether the record is still inside the resume window.
func (p *PendingPayment) Fresh(now time.Time, maxAge time.Duration) bool {
	started := time.UnixMilli(p.StartedAt)
	return now.Sub(started) < maxAge
}

// PreferenceRequest is the payload for creating a payment preference.
type PreferenceRequest struct {
	Items   []CheckoutItem `json:"items" validate:"required,min=1,dive"`
	BaseURL string         `json:"baseUrl" validate:"required,url"`
}

// PreferenceResponse mirrors the provider's preference object: a session id,
// the hosted checkout URL and the merchant-chosen correlation reference.
type PreferenceResponse struct {
	ID                string `json:"id"`
	InitPoint         string `json:"init_point"`
	ExternalReference string `json:"external_reference"`
}

// CardFormData is the widget-collected card form, forwarded verbatim to the
// provider's payment endpoint.
type CardFormData struct {
	Token             string  `json:"token" validate:"required"`
	IssuerID          string  `json:"issuer_id"`
	PaymentMethodID   string  `json:"payment_method_id" validate:"required"`
	TransactionAmount float64 `json:"transaction_amount" validate:"required,gt=0"`
	Installments      int     `json:"installments" validate:"required,gte=1"`
	Payer             Payer   `json:"payer" validate:"required"`
}

// Payer identifies who is paying on the card path.
type Payer struct {
	Email          string         `json:"email" validate:"required,email"`
	Identification Identification `json:"identification"`
}

// Identification is the payer's document (DNI for local cards).
type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// TransactionData carries the redirect ticket for offline/wallet methods.
type TransactionData struct {
	TicketURL string `json:"ticket_url,omitempty"`
}

// PointOfInteraction is present when the provider needs the payer to finish
// the payment somewhere else (wallet app, payment point).
type PointOfInteraction struct {
	Type            string          `json:"type,omitempty"`
	TransactionData TransactionData `json:"transaction_data,omitempty"`
}

// PaymentResult is the provider's answer for process-payment and
// check-status calls.
type PaymentResult struct {
	ID                 int64               `json:"id"`
	Status             string              `json:"status"`
	StatusDetail       string              `json:"status_detail,omitempty"`
	ExternalReference  string              `json:"external_reference,omitempty"`
	PointOfInteraction *PointOfInteraction `json:"point_of_interaction,omitempty"`
}
