package repositories

import (
	"context"
	"time"

	"flipacademy/internal/models"
)

// PendingPaymentStore defines durable storage for the single in-flight
// payment record per checkout session, plus the success-signal fallback key.
//
// The signal key mirrors the cross-tab storage-event fallback of the original
// flow: its write (not its content) means "an external payment for this user
// succeeded", and the receiver must clear it immediately so it cannot
// re-trigger.
type PendingPaymentStore interface {
	Load(ctx context.Context, userID string) (*models.PendingPayment, error)
	Save(ctx context.Context, userID string, record *models.PendingPayment, ttl time.Duration) error
	Delete(ctx context.Context, userID string) error

	SignalSuccess(ctx context.Context, userID string, paymentID string) error
	// ConsumeSignal atomically reads and clears the signal key. It returns the
	// signalled payment id and whether a signal was present.
	ConsumeSignal(ctx context.Context, userID string) (string, bool, error)

	// ResolveReference maps a payment external reference back to the user
	// whose record carries it, for provider-initiated notifications that
	// arrive without a session. It returns "" when no record claims the
	// reference.
	ResolveReference(ctx context.Context, externalReference string) (string, error)
}
