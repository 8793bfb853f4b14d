package mercadopago_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"flipacademy/internal/models"
	"flipacademy/pkg/mercadopago"

	"github.com/stretchr/testify/assert"
)

func TestCreatePreference(t *testing.T) {
	var captured map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":         "pref-1",
			"init_point": "https://mp.test/init/pref-1",
		})
	}))
	defer server.Close()

	client := mercadopago.NewClient(mercadopago.Config{BaseURL: server.URL, AccessToken: "test-token"})

	pref, err := client.CreatePreference(context.Background(), models.PreferenceRequest{
		Items: []models.CheckoutItem{
			{ID: "course-marketing", Title: "Marketing", Price: 108.00, Quantity: 1},
		},
		BaseURL: "https://academy.test",
	})
	assert.NoError(t, err)
	assert.Equal(t, "pref-1", pref.ID)
	assert.Equal(t, "https://mp.test/init/pref-1", pref.InitPoint)
	// The correlation reference is generated client-side, not by the provider.
	assert.NotEmpty(t, pref.ExternalReference)

	backURLs := captured["back_urls"].(map[string]interface{})
	assert.Equal(t, "https://academy.test/checkout/callback", backURLs["success"])
	assert.Equal(t, "https://academy.test/checkout", backURLs["failure"])
	assert.Equal(t, "approved", captured["auto_return"])
	assert.Equal(t, pref.ExternalReference, captured["external_reference"])

	items := captured["items"].([]interface{})
	assert.Len(t, items, 1)
	line := items[0].(map[string]interface{})
	assert.Equal(t, "Marketing", line["title"])
	assert.Equal(t, 108.00, line["unit_price"])
	assert.Equal(t, "ARS", line["currency_id"])
}

func TestProcessPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments", r.URL.Path)

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "card-token", body["token"])
		assert.Equal(t, "ref-1", body["external_reference"])

		_ = json.NewEncoder(w).Encode(models.PaymentResult{ID: 123, Status: "approved"})
	}))
	defer server.Close()

	client := mercadopago.NewClient(mercadopago.Config{BaseURL: server.URL, AccessToken: "test-token"})

	result, err := client.ProcessPayment(context.Background(), models.CardFormData{
		Token:             "card-token",
		PaymentMethodID:   "visa",
		TransactionAmount: 108.00,
		Installments:      1,
		Payer:             models.Payer{Email: "ana@example.com"},
	}, "ref-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(123), result.ID)
	assert.Equal(t, "approved", result.Status)
}

func TestGetPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/123", r.URL.Path)
		_ = json.NewEncoder(w).Encode(models.PaymentResult{ID: 123, Status: "in_process", StatusDetail: "pending_contingency"})
	}))
	defer server.Close()

	client := mercadopago.NewClient(mercadopago.Config{BaseURL: server.URL, AccessToken: "test-token"})

	result, err := client.GetPayment(context.Background(), "123")
	assert.NoError(t, err)
	assert.Equal(t, "in_process", result.Status)
	assert.Equal(t, "pending_contingency", result.StatusDetail)
}

func TestSearchByReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/search", r.URL.Path)
		assert.Equal(t, "ref-1", r.URL.Query().Get("external_reference"))
		assert.Equal(t, "date_created", r.URL.Query().Get("sort"))
		assert.Equal(t, "desc", r.URL.Query().Get("criteria"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []models.PaymentResult{
				{ID: 789, Status: "approved", ExternalReference: "ref-1"},
			},
		})
	}))
	defer server.Close()

	client := mercadopago.NewClient(mercadopago.Config{BaseURL: server.URL, AccessToken: "test-token"})

	result, err := client.SearchByReference(context.Background(), "ref-1")
	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, int64(789), result.ID)
}

func TestSearchByReferenceNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"results": []models.PaymentResult{}})
	}))
	defer server.Close()

	client := mercadopago.NewClient(mercadopago.Config{BaseURL: server.URL, AccessToken: "test-token"})

	result, err := client.SearchByReference(context.Background(), "ref-unseen")
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestAPIErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   "bad_request",
			"details": "invalid card token",
		})
	}))
	defer server.Close()

	client := mercadopago.NewClient(mercadopago.Config{BaseURL: server.URL, AccessToken: "test-token"})

	_, err := client.GetPayment(context.Background(), "123")
	assert.Error(t, err)

	apiErr, ok := err.(*mercadopago.APIError)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "bad_request", apiErr.Message)
	assert.Contains(t, err.Error(), "invalid card token")
}

func TestAPIErrorNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream blew up"))
	}))
	defer server.Close()

	client := mercadopago.NewClient(mercadopago.Config{BaseURL: server.URL, AccessToken: "test-token"})

	_, err := client.GetPayment(context.Background(), "123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "upstream blew up")
}
