package services

import (
	"context"
	"log"
	"sync"
	"time"
)

// PaymentWatcher drives the confirmation polling for one awaiting session.
// It is mounted when a payment enters the waiting state and stopped on any
// terminal transition. Wake requests an immediate check out of cadence, for
// the case where the user's tab regains visibility.
type PaymentWatcher struct {
	service  *CheckoutService
	userID   string
	interval time.Duration

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func newPaymentWatcher(service *CheckoutService, userID string, interval time.Duration) *PaymentWatcher {
	return &PaymentWatcher{
		service:  service,
		userID:   userID,
		interval: interval,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Run polls until stopped. The first check fires one interval after the
// watcher mounts, or sooner through Wake.
func (w *PaymentWatcher) Run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-w.wake:
			w.poll()
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *PaymentWatcher) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval*2)
	defer cancel()

	if err := w.service.PollNow(ctx, w.userID); err != nil {
		log.Printf("Payment poll failed for user %s: %v", w.userID, err)
	}
}

// Wake requests an immediate poll. Non-blocking; a pending request already
// covers it.
func (w *PaymentWatcher) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Stop terminates the polling loop. Safe to call more than once.
func (w *PaymentWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
}
