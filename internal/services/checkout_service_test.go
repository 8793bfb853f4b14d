package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flipacademy/internal/models"
	"flipacademy/internal/repositories"
	"flipacademy/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockPaymentProvider is a mock implementation of services.PaymentProvider.
type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) CreatePreference(ctx context.Context, req models.PreferenceRequest) (*models.PreferenceResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PreferenceResponse), args.Error(1)
}

func (m *MockPaymentProvider) ProcessPayment(ctx context.Context, form models.CardFormData, externalReference string) (*models.PaymentResult, error) {
	args := m.Called(ctx, form, externalReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentResult), args.Error(1)
}

func (m *MockPaymentProvider) GetPayment(ctx context.Context, paymentID string) (*models.PaymentResult, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentResult), args.Error(1)
}

func (m *MockPaymentProvider) SearchByReference(ctx context.Context, externalReference string) (*models.PaymentResult, error) {
	args := m.Called(ctx, externalReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentResult), args.Error(1)
}

// MockCommitter is a mock implementation of services.EntitlementCommitter.
type MockCommitter struct {
	mock.Mock
}

func (m *MockCommitter) PurchaseItems(ctx context.Context, userID string, items []models.PurchaseItem, clearCart bool) error {
	args := m.Called(ctx, userID, items, clearCart)
	return args.Error(0)
}

func (m *MockCommitter) CreateOrder(userID string, items []models.OrderItem, total float64, method, status string, dni, address, zipCode string) (*models.Order, error) {
	args := m.Called(userID, items, total, method, status, dni, address, zipCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

// countingCommitter counts commits without testify so it can be hammered from
// many goroutines.
type countingCommitter struct {
	commits atomic.Int64
}

func (c *countingCommitter) PurchaseItems(context.Context, string, []models.PurchaseItem, bool) error {
	c.commits.Add(1)
	return nil
}

func (c *countingCommitter) CreateOrder(string, []models.OrderItem, float64, string, string, string, string, string) (*models.Order, error) {
	return &models.Order{}, nil
}

type checkoutFixture struct {
	service  *services.CheckoutService
	provider *MockPaymentProvider
	commits  *MockCommitter
	pendings *repositories.MockPendingStore
	cart     *services.CartService
}

func newCheckoutFixture(cfg services.CheckoutConfig) *checkoutFixture {
	if cfg.PollInterval == 0 {
		// Long enough that the background watcher never ticks mid-test;
		// polling is driven explicitly through PollNow.
		cfg.PollInterval = time.Hour
	}

	catalog := repositories.NewStaticCatalogRepository()
	catalog.SeedCourses([]models.Course{
		{ID: "course-marketing", Title: "Marketing", Price: 120.00, Modules: []models.CourseModule{
			{Title: "Intro", Type: models.ModuleVideo},
		}},
	})

	provider := new(MockPaymentProvider)
	commits := new(MockCommitter)
	pendings := repositories.NewMockPendingStore()
	cart := services.NewCartService(repositories.NewMockCartStore(), services.DefaultCoupons())

	return &checkoutFixture{
		service:  services.NewCheckoutService(provider, pendings, commits, cart, catalog, nil, cfg),
		provider: provider,
		commits:  commits,
		pendings: pendings,
		cart:     cart,
	}
}

func (f *checkoutFixture) fillCart(t *testing.T, userID string) []models.PurchaseItem {
	t.Helper()
	_, err := f.cart.Add(context.Background(), userID, models.CartItem{
		ID: "course-marketing", Title: "Marketing", Price: 120.00, Type: models.ItemCourse,
	})
	assert.NoError(t, err)
	return []models.PurchaseItem{{ID: "course-marketing", Type: models.ItemCourse}}
}

func TestCheckout_PreferenceIsCreatedOnceAndCached(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()
	f.fillCart(t, "user-1")

	pref := &models.PreferenceResponse{ID: "pref-1", InitPoint: "https://mp.test/init", ExternalReference: "ref-1"}
	f.provider.On("CreatePreference", mock.Anything, mock.Anything).Return(pref, nil).Once()

	first, err := f.service.Preference(ctx, "user-1", "", "https://academy.test")
	assert.NoError(t, err)
	assert.Equal(t, "pref-1", first.ID)

	// Re-entering the payment step must not create another preference.
	second, err := f.service.Preference(ctx, "user-1", "", "https://academy.test")
	assert.NoError(t, err)
	assert.Equal(t, first, second)

	f.provider.AssertExpectations(t)
}

func TestCheckout_PreferenceEmptyCart(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})

	_, err := f.service.Preference(context.Background(), "user-1", "", "https://academy.test")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cart is empty")
}

func TestCheckout_CardApprovedCommitsImmediately(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()
	items := f.fillCart(t, "user-1")

	f.provider.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.PaymentResult{ID: 123, Status: models.PaymentApproved}, nil).Once()
	f.commits.On("PurchaseItems", mock.Anything, "user-1", items, true).Return(nil).Once()

	outcome, err := f.service.SubmitCard(ctx, "user-1", models.CardFormData{Token: "tok"})
	assert.NoError(t, err)
	assert.Equal(t, models.StateApproved, outcome.State)
	assert.Equal(t, "123", outcome.PaymentID)
	assert.Equal(t, "/pago_apro", outcome.RedirectTo)

	assert.Equal(t, models.StateApproved, f.service.Status("user-1").State)

	// Any late approval signal for the same payment must be a no-op.
	assert.NoError(t, f.service.ReportApproved(ctx, "user-1", "123"))

	f.provider.AssertExpectations(t)
	f.commits.AssertExpectations(t)
}

func TestCheckout_SecondPurchaseAfterApprovalCommitsAgain(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()
	items := f.fillCart(t, "user-1")

	f.commits.On("PurchaseItems", mock.Anything, "user-1", items, true).Return(nil).Twice()

	f.provider.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.PaymentResult{ID: 123, Status: models.PaymentApproved}, nil).Once()
	first, err := f.service.SubmitCard(ctx, "user-1", models.CardFormData{Token: "tok"})
	assert.NoError(t, err)
	assert.Equal(t, models.StateApproved, first.State)

	// The same customer comes back and buys again. The approved terminal
	// from the first payment must not swallow the second one's commit.
	f.fillCart(t, "user-1")
	f.provider.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.PaymentResult{ID: 124, Status: models.PaymentApproved}, nil).Once()
	second, err := f.service.SubmitCard(ctx, "user-1", models.CardFormData{Token: "tok2"})
	assert.NoError(t, err)
	assert.Equal(t, models.StateApproved, second.State)
	assert.Equal(t, "124", second.PaymentID)
	assert.Equal(t, models.StateApproved, f.service.Status("user-1").State)

	f.provider.AssertExpectations(t)
	f.commits.AssertExpectations(t)
}

func TestCheckout_NewPreferenceAfterApprovedCheckout(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()
	items := f.fillCart(t, "user-1")

	pref := &models.PreferenceResponse{ID: "pref-1", InitPoint: "https://mp.test/init", ExternalReference: "ref-1"}
	f.provider.On("CreatePreference", mock.Anything, mock.Anything).Return(pref, nil).Once()
	_, err := f.service.Preference(ctx, "user-1", "", "https://academy.test")
	assert.NoError(t, err)

	f.provider.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.PaymentResult{ID: 123, Status: models.PaymentApproved}, nil).Once()
	f.commits.On("PurchaseItems", mock.Anything, "user-1", items, true).Return(nil).Once()
	_, err = f.service.SubmitCard(ctx, "user-1", models.CardFormData{Token: "tok"})
	assert.NoError(t, err)

	// Entering checkout again after the approval is a new payment, with its
	// own preference.
	f.fillCart(t, "user-1")
	pref2 := &models.PreferenceResponse{ID: "pref-2", InitPoint: "https://mp.test/init2", ExternalReference: "ref-2"}
	f.provider.On("CreatePreference", mock.Anything, mock.Anything).Return(pref2, nil).Once()
	fresh, err := f.service.Preference(ctx, "user-1", "", "https://academy.test")
	assert.NoError(t, err)
	assert.Equal(t, "pref-2", fresh.ID)

	f.provider.AssertExpectations(t)
	f.commits.AssertExpectations(t)
}

func TestCheckout_CardInProcessEntersWaitingState(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()
	f.fillCart(t, "user-1")

	f.provider.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.PaymentResult{
			ID:                 456,
			Status:             models.PaymentInProcess,
			StatusDetail:       "pending_contingency",
			PointOfInteraction: &models.PointOfInteraction{TransactionData: models.TransactionData{TicketURL: "https://mp.test/ticket"}},
		}, nil).Once()

	outcome, err := f.service.SubmitCard(ctx, "user-1", models.CardFormData{Token: "tok"})
	assert.NoError(t, err)
	assert.Equal(t, models.StateAwaiting, outcome.State)
	assert.Equal(t, "https://mp.test/ticket", outcome.TicketURL)

	record, err := f.pendings.Load(ctx, "user-1")
	assert.NoError(t, err)
	assert.NotNil(t, record)
	assert.Equal(t, "456", record.PaymentID)
	assert.True(t, record.InProgress)
	assert.Equal(t, 0, record.Attempts)
	assert.Len(t, record.Items, 1)

	// A second submission while one is in flight is refused.
	_, err = f.service.SubmitCard(ctx, "user-1", models.CardFormData{Token: "tok2"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")

	assert.NoError(t, f.service.Cancel(ctx, "user-1"))
	f.provider.AssertExpectations(t)
}

func TestCheckout_PollApprovalCommitsOnce(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()
	items := f.fillCart(t, "user-1")

	f.provider.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.PaymentResult{ID: 456, Status: models.PaymentInProcess}, nil).Once()
	_, err := f.service.SubmitCard(ctx, "user-1", models.CardFormData{Token: "tok"})
	assert.NoError(t, err)

	f.provider.On("GetPayment", mock.Anything, "456").
		Return(&models.PaymentResult{ID: 456, Status: models.PaymentPending}, nil).Once()
	assert.NoError(t, f.service.PollNow(ctx, "user-1"))
	assert.Equal(t, models.StateAwaiting, f.service.Status("user-1").State)
	assert.Equal(t, 1, f.service.Status("user-1").Attempts)

	f.provider.On("GetPayment", mock.Anything, "456").
		Return(&models.PaymentResult{ID: 456, Status: models.PaymentApproved}, nil).Once()
	f.commits.On("PurchaseItems", mock.Anything, "user-1", items, true).Return(nil).Once()
	assert.NoError(t, f.service.PollNow(ctx, "user-1"))

	assert.Equal(t, models.StateApproved, f.service.Status("user-1").State)

	// The record is gone, so a reload cannot resume a finished payment.
	record, err := f.pendings.Load(ctx, "user-1")
	assert.NoError(t, err)
	assert.Nil(t, record)

	// Further polls are no-ops once the state is terminal.
	assert.NoError(t, f.service.PollNow(ctx, "user-1"))

	f.provider.AssertExpectations(t)
	f.commits.AssertExpectations(t)
}

func TestCheckout_PollRejection(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{RejectCooldown: time.Millisecond})
	ctx := context.Background()
	f.fillCart(t, "user-1")

	f.provider.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.PaymentResult{ID: 456, Status: models.PaymentInProcess}, nil).Once()
	_, err := f.service.SubmitCard(ctx, "user-1", models.CardFormData{Token: "tok"})
	assert.NoError(t, err)

	f.provider.On("GetPayment", mock.Anything, "456").
		Return(&models.PaymentResult{ID: 456, Status: models.PaymentRejected}, nil).Once()
	assert.NoError(t, f.service.PollNow(ctx, "user-1"))

	status := f.service.Status("user-1")
	assert.Equal(t, models.StateRejected, status.State)
	assert.NotEmpty(t, status.LastError)

	record, err := f.pendings.Load(ctx, "user-1")
	assert.NoError(t, err)
	assert.Nil(t, record)

	f.provider.AssertExpectations(t)
	f.commits.AssertNotCalled(t, "PurchaseItems", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckout_AttemptCeilingTimesOut(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{MaxAttempts: 2})
	ctx := context.Background()
	f.fillCart(t, "user-1")

	f.provider.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.PaymentResult{ID: 456, Status: models.PaymentInProcess}, nil).Once()
	_, err := f.service.SubmitCard(ctx, "user-1", models.CardFormData{Token: "tok"})
	assert.NoError(t, err)

	f.provider.On("GetPayment", mock.Anything, "456").
		Return(&models.PaymentResult{ID: 456, Status: models.PaymentPending}, nil).Twice()

	assert.NoError(t, f.service.PollNow(ctx, "user-1"))
	assert.Equal(t, models.StateAwaiting, f.service.Status("user-1").State)

	assert.NoError(t, f.service.PollNow(ctx, "user-1"))
	assert.Equal(t, models.StateTimedOut, f.service.Status("user-1").State)

	record, err := f.pendings.Load(ctx, "user-1")
	assert.NoError(t, err)
	assert.Nil(t, record)

	f.provider.AssertExpectations(t)
	f.commits.AssertNotCalled(t, "PurchaseItems", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckout_WalletAdoptsPaymentIDFromReference(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()
	items := f.fillCart(t, "user-1")

	pref := &models.PreferenceResponse{ID: "pref-1", InitPoint: "https://mp.test/init", ExternalReference: "ref-1"}
	f.provider.On("CreatePreference", mock.Anything, mock.Anything).Return(pref, nil).Once()
	_, err := f.service.Preference(ctx, "user-1", "", "https://academy.test")
	assert.NoError(t, err)

	outcome, err := f.service.SubmitWallet(ctx, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, "https://mp.test/init", outcome.InitPoint)
	assert.Equal(t, services.PopupWindowName, outcome.WindowName)
	assert.Equal(t, services.PopupWidth, outcome.Width)
	assert.Equal(t, services.PopupHeight, outcome.Height)

	// No payment id yet; the first poll searches by reference and adopts
	// the id the search surfaces.
	f.provider.On("SearchByReference", mock.Anything, "ref-1").
		Return(&models.PaymentResult{ID: 789, Status: models.PaymentPending}, nil).Once()
	assert.NoError(t, f.service.PollNow(ctx, "user-1"))

	record, err := f.pendings.Load(ctx, "user-1")
	assert.NoError(t, err)
	assert.NotNil(t, record)
	assert.Equal(t, "789", record.PaymentID)

	// Subsequent polls go by id.
	f.provider.On("GetPayment", mock.Anything, "789").
		Return(&models.PaymentResult{ID: 789, Status: models.PaymentAccredited}, nil).Once()
	f.commits.On("PurchaseItems", mock.Anything, "user-1", items, true).Return(nil).Once()
	assert.NoError(t, f.service.PollNow(ctx, "user-1"))

	assert.Equal(t, models.StateApproved, f.service.Status("user-1").State)
	f.provider.AssertExpectations(t)
	f.commits.AssertExpectations(t)
}

func TestCheckout_WalletWithoutPreference(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})

	_, err := f.service.SubmitWallet(context.Background(), "user-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no payment preference")
}

func TestCheckout_SuccessSignalShortCircuitsPolling(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()
	items := f.fillCart(t, "user-1")

	f.provider.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.PaymentResult{ID: 456, Status: models.PaymentInProcess}, nil).Once()
	_, err := f.service.SubmitCard(ctx, "user-1", models.CardFormData{Token: "tok"})
	assert.NoError(t, err)

	// Another session completed the payment and left the signal; the poll
	// consumes it and commits without a provider round trip.
	assert.NoError(t, f.pendings.SignalSuccess(ctx, "user-1", "456"))
	f.commits.On("PurchaseItems", mock.Anything, "user-1", items, true).Return(nil).Once()

	assert.NoError(t, f.service.PollNow(ctx, "user-1"))
	assert.Equal(t, models.StateApproved, f.service.Status("user-1").State)

	// The signal was consumed on read.
	_, ok, err := f.pendings.ConsumeSignal(ctx, "user-1")
	assert.NoError(t, err)
	assert.False(t, ok)

	f.provider.AssertNotCalled(t, "GetPayment", mock.Anything, mock.Anything)
	f.commits.AssertExpectations(t)
}

func TestCheckout_RacingApprovalsCommitExactlyOnce(t *testing.T) {
	catalog := repositories.NewStaticCatalogRepository()
	commits := &countingCommitter{}
	cart := services.NewCartService(repositories.NewMockCartStore(), nil)
	pendings := repositories.NewMockPendingStore()

	svc := services.NewCheckoutService(new(MockPaymentProvider), pendings, commits, cart, catalog, nil,
		services.CheckoutConfig{PollInterval: time.Hour})

	ctx := context.Background()
	record := &models.PendingPayment{
		PaymentID:  "456",
		InProgress: true,
		StartedAt:  time.Now().UnixMilli(),
		Items:      []models.PurchaseItem{{ID: "course-marketing", Type: models.ItemCourse}},
	}
	assert.NoError(t, pendings.Save(ctx, "user-1", record, time.Hour))

	// Polling, broadcast, success signal and callback can all observe the
	// approval at the same moment.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.ReportApproved(ctx, "user-1", "456")
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), commits.commits.Load())
	assert.Equal(t, models.StateApproved, svc.Status("user-1").State)
}

func TestCheckout_ResumeFreshRecord(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()

	record := &models.PendingPayment{
		PaymentID:  "456",
		InProgress: true,
		StartedAt:  time.Now().Add(-10 * time.Minute).UnixMilli(),
		Attempts:   17,
		Items:      []models.PurchaseItem{{ID: "course-marketing", Type: models.ItemCourse}},
	}
	assert.NoError(t, f.pendings.Save(ctx, "user-1", record, time.Hour))

	resumed, err := f.service.Resume(ctx, "user-1")
	assert.NoError(t, err)
	assert.True(t, resumed)

	status := f.service.Status("user-1")
	assert.Equal(t, models.StateAwaiting, status.State)
	assert.Equal(t, "456", status.PaymentID)
	// A resumed session gets a full polling budget.
	assert.Equal(t, 0, status.Attempts)

	assert.NoError(t, f.service.Cancel(ctx, "user-1"))
}

func TestCheckout_ResumeStaleRecordIsDiscarded(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()

	record := &models.PendingPayment{
		PaymentID:  "456",
		InProgress: true,
		StartedAt:  time.Now().Add(-2 * time.Hour).UnixMilli(),
	}
	assert.NoError(t, f.pendings.Save(ctx, "user-1", record, 3*time.Hour))

	resumed, err := f.service.Resume(ctx, "user-1")
	assert.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, models.StateIdle, f.service.Status("user-1").State)

	stored, err := f.pendings.Load(ctx, "user-1")
	assert.NoError(t, err)
	assert.Nil(t, stored)
}

func TestCheckout_ResumeWithNoRecord(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})

	resumed, err := f.service.Resume(context.Background(), "user-1")
	assert.NoError(t, err)
	assert.False(t, resumed)
}

func TestCheckout_CallbackCommitsAndLeavesSignal(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()
	items := f.fillCart(t, "user-1")

	f.commits.On("PurchaseItems", mock.Anything, "user-1", items, true).Return(nil).Once()

	assert.NoError(t, f.service.HandleCallback(ctx, "user-1", models.PaymentApproved, "456", "ref-1"))
	assert.Equal(t, models.StateApproved, f.service.Status("user-1").State)

	// The signal stays for sessions on other instances to consume.
	paymentID, ok, err := f.pendings.ConsumeSignal(ctx, "user-1")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "456", paymentID)

	f.commits.AssertExpectations(t)
}

func TestCheckout_CallbackIgnoresNonApprovedStatus(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})

	assert.NoError(t, f.service.HandleCallback(context.Background(), "user-1", models.PaymentRejected, "456", "ref-1"))
	assert.Equal(t, models.StateIdle, f.service.Status("user-1").State)
	f.commits.AssertNotCalled(t, "PurchaseItems", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckout_CancelClearsPendingRecord(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()
	f.fillCart(t, "user-1")

	f.provider.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.PaymentResult{ID: 456, Status: models.PaymentInProcess}, nil).Once()
	_, err := f.service.SubmitCard(ctx, "user-1", models.CardFormData{Token: "tok"})
	assert.NoError(t, err)

	assert.NoError(t, f.service.Cancel(ctx, "user-1"))
	assert.Equal(t, models.StateCancelled, f.service.Status("user-1").State)

	record, err := f.pendings.Load(ctx, "user-1")
	assert.NoError(t, err)
	assert.Nil(t, record)
}

func TestCheckout_BankTransferCreatesPendingOrder(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()
	f.fillCart(t, "user-1")

	billing := services.BillingInfo{
		FirstName: "Ana", LastName: "Pérez", Email: "ana@example.com",
		DNI: "30111222", Address: "Av. Siempreviva 742", ZipCode: "1406",
	}

	// 120.00 with the 10% transfer incentive.
	f.commits.On("CreateOrder", "user-1", mock.Anything, 108.00, models.MethodTransfer, models.OrderPending,
		"30111222", "Av. Siempreviva 742", "1406").
		Return(&models.Order{ID: "order-1", Status: models.OrderPending}, nil).Once()

	order, err := f.service.SubmitBankTransfer(ctx, "user-1", billing, "")
	assert.NoError(t, err)
	assert.Equal(t, "order-1", order.ID)

	// The cart is emptied once the order exists.
	summary, err := f.cart.Summary(ctx, "user-1")
	assert.NoError(t, err)
	assert.Empty(t, summary.Items)

	f.commits.AssertExpectations(t)
}

func TestCheckout_BankTransferDirectCourse(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})

	billing := services.BillingInfo{
		FirstName: "Ana", LastName: "Pérez", Email: "ana@example.com",
		DNI: "30111222", Address: "Av. Siempreviva 742", ZipCode: "1406",
	}

	f.commits.On("CreateOrder", "user-1", mock.Anything, 108.00, models.MethodTransfer, models.OrderPending,
		mock.Anything, mock.Anything, mock.Anything).
		Return(&models.Order{ID: "order-2"}, nil).Once()

	order, err := f.service.SubmitBankTransfer(context.Background(), "user-1", billing, "course-marketing")
	assert.NoError(t, err)
	assert.Equal(t, "order-2", order.ID)
	f.commits.AssertExpectations(t)
}

func TestCheckout_TestPurchaseGrantsDirectly(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()
	items := f.fillCart(t, "user-1")

	f.commits.On("PurchaseItems", mock.Anything, "user-1", items, true).Return(nil).Once()
	assert.NoError(t, f.service.SubmitTestPurchase(ctx, "user-1", ""))
	f.commits.AssertExpectations(t)
}

func TestCheckout_ConcurrentPollsCountEveryAttempt(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{MaxAttempts: 100})
	ctx := context.Background()
	f.fillCart(t, "user-1")

	f.provider.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.PaymentResult{ID: 456, Status: models.PaymentInProcess}, nil).Once()
	_, err := f.service.SubmitCard(ctx, "user-1", models.CardFormData{Token: "tok"})
	assert.NoError(t, err)

	f.provider.On("GetPayment", mock.Anything, "456").
		Return(&models.PaymentResult{ID: 456, Status: models.PaymentPending}, nil).Times(8)

	// Wake-triggered polls race the ticker in production; every poll must
	// spend exactly one attempt or the 20-attempt ceiling stretches.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.service.PollNow(ctx, "user-1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, f.service.Status("user-1").Attempts)

	assert.NoError(t, f.service.Cancel(ctx, "user-1"))
	f.provider.AssertExpectations(t)
}

func TestCheckout_WebhookResolvesReferenceAndCommits(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()
	items := f.fillCart(t, "user-1")

	pref := &models.PreferenceResponse{ID: "pref-1", InitPoint: "https://mp.test/init", ExternalReference: "ref-1"}
	f.provider.On("CreatePreference", mock.Anything, mock.Anything).Return(pref, nil).Once()
	_, err := f.service.Preference(ctx, "user-1", "", "https://academy.test")
	assert.NoError(t, err)
	_, err = f.service.SubmitWallet(ctx, "user-1")
	assert.NoError(t, err)

	// The provider notifies with only a payment id; the external reference
	// on the fetched payment leads back to the waiting user.
	f.provider.On("GetPayment", mock.Anything, "789").
		Return(&models.PaymentResult{ID: 789, Status: models.PaymentApproved, ExternalReference: "ref-1"}, nil).Once()
	f.commits.On("PurchaseItems", mock.Anything, "user-1", items, true).Return(nil).Once()

	assert.NoError(t, f.service.HandleWebhook(ctx, "789"))
	assert.Equal(t, models.StateApproved, f.service.Status("user-1").State)

	f.provider.AssertExpectations(t)
	f.commits.AssertExpectations(t)
}

func TestCheckout_WebhookUnknownReferenceIsDropped(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})

	f.provider.On("GetPayment", mock.Anything, "789").
		Return(&models.PaymentResult{ID: 789, Status: models.PaymentApproved, ExternalReference: "ref-unseen"}, nil).Once()

	assert.NoError(t, f.service.HandleWebhook(context.Background(), "789"))
	f.commits.AssertNotCalled(t, "PurchaseItems", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckout_WebhookIgnoresNonApprovedStatus(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})

	f.provider.On("GetPayment", mock.Anything, "789").
		Return(&models.PaymentResult{ID: 789, Status: models.PaymentInProcess, ExternalReference: "ref-1"}, nil).Once()

	assert.NoError(t, f.service.HandleWebhook(context.Background(), "789"))
	f.commits.AssertNotCalled(t, "PurchaseItems", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckout_PollSurvivesTransientProviderErrors(t *testing.T) {
	f := newCheckoutFixture(services.CheckoutConfig{})
	ctx := context.Background()
	f.fillCart(t, "user-1")

	f.provider.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.PaymentResult{ID: 456, Status: models.PaymentInProcess}, nil).Once()
	_, err := f.service.SubmitCard(ctx, "user-1", models.CardFormData{Token: "tok"})
	assert.NoError(t, err)

	f.provider.On("GetPayment", mock.Anything, "456").
		Return(nil, assert.AnError).Once()
	assert.NoError(t, f.service.PollNow(ctx, "user-1"))

	// Still waiting; the attempt was spent but the flow was not aborted.
	status := f.service.Status("user-1")
	assert.Equal(t, models.StateAwaiting, status.State)
	assert.Equal(t, 1, status.Attempts)

	assert.NoError(t, f.service.Cancel(ctx, "user-1"))
	f.provider.AssertExpectations(t)
}
