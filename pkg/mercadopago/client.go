package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"flipacademy/internal/models"

	"github.com/google/uuid"
)

// Client is a thin REST client for the Mercado Pago payment API. It covers
// the three calls the checkout flow needs: create a preference, process a
// widget-collected card payment, and check a payment's status by id or by
// external reference.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// Config holds provider connection details.
type Config struct {
	BaseURL     string // defaults to the production API host
	AccessToken string
}

// NewClient creates a new provider client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.mercadopago.com"
	}
	return &Client{
		baseURL:     baseURL,
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError is a non-2xx provider response, carrying the {error, details}
// body surfaced to the user.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Details    string `json:"details"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago: %s (status %d): %s", e.Message, e.StatusCode, e.Details)
}

// preferenceBody is the provider-side preference payload.
type preferenceBody struct {
	Items             []preferenceItem `json:"items"`
	BackURLs          backURLs         `json:"back_urls"`
	AutoReturn        string           `json:"auto_return"`
	ExternalReference string           `json:"external_reference"`
}

type preferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type backURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// CreatePreference creates a payment preference for the given checkout items.
// The correlation reference is generated here and echoed back by the provider
// on every payment it produces, so status can be looked up before a payment
// id exists.
func (c *Client) CreatePreference(ctx context.Context, req models.PreferenceRequest) (*models.PreferenceResponse, error) {
	externalReference := uuid.New().String()

	body := preferenceBody{
		BackURLs: backURLs{
			Success: req.BaseURL + "/checkout/callback",
			Failure: req.BaseURL + "/checkout",
			Pending: req.BaseURL + "/checkout",
		},
		AutoReturn:        "approved",
		ExternalReference: externalReference,
	}
	for _, item := range req.Items {
		body.Items = append(body.Items, preferenceItem{
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  item.Price,
			CurrencyID: "ARS",
		})
	}

	var out struct {
		ID        string `json:"id"`
		InitPoint string `json:"init_point"`
	}
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", body, &out); err != nil {
		return nil, err
	}

	return &models.PreferenceResponse{
		ID:                out.ID,
		InitPoint:         out.InitPoint,
		ExternalReference: externalReference,
	}, nil
}

// paymentBody wraps the card form data with the correlation reference.
type paymentBody struct {
	models.CardFormData
	ExternalReference string `json:"external_reference,omitempty"`
}

// ProcessPayment submits widget-collected card form data.
func (c *Client) ProcessPayment(ctx context.Context, form models.CardFormData, externalReference string) (*models.PaymentResult, error) {
	body := paymentBody{CardFormData: form, ExternalReference: externalReference}

	var result models.PaymentResult
	if err := c.do(ctx, http.MethodPost, "/v1/payments", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPayment queries a payment's current status by payment id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*models.PaymentResult, error) {
	var result models.PaymentResult
	path := "/v1/payments/" + url.PathEscape(paymentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchByReference finds the most recent payment created under an external
// reference. Returns (nil, nil) when the provider has no payment yet; the
// wallet popup may still be in flight.
func (c *Client) SearchByReference(ctx context.Context, externalReference string) (*models.PaymentResult, error) {
	q := url.Values{}
	q.Set("external_reference", externalReference)
	q.Set("sort", "date_created")
	q.Set("criteria", "desc")

	var out struct {
		Results []models.PaymentResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/payments/search?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, nil
	}
	result := out.Results[0]
	return &result, nil
}

// do performs one authenticated JSON round-trip against the provider API.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = "provider error"
			apiErr.Details = string(raw)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}
	return nil
}
