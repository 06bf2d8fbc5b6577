package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"telegram-bingo/internal/config"
)

// ChapaClient is a Gateway backed by the Chapa REST API.
type ChapaClient struct {
	baseURL     string
	secretKey   string
	callbackURL string
	returnURL   string
	httpClient  *http.Client
}

var _ Gateway = (*ChapaClient)(nil)

// NewChapaClient creates a Chapa client.
func NewChapaClient(cfg config.ChapaConfig) *ChapaClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChapaClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:   cfg.SecretKey,
		callbackURL: cfg.CallbackURL,
		returnURL:   cfg.ReturnURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type chapaCustomization struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type chapaInitializeRequest struct {
	Amount        string             `json:"amount"`
	Currency      string             `json:"currency"`
	Email         string             `json:"email,omitempty"`
	FirstName     string             `json:"first_name,omitempty"`
	LastName      string             `json:"last_name,omitempty"`
	PhoneNumber   string             `json:"phone_number,omitempty"`
	TxRef         string             `json:"tx_ref"`
	CallbackURL   string             `json:"callback_url,omitempty"`
	ReturnURL     string             `json:"return_url,omitempty"`
	Customization chapaCustomization `json:"customization"`
}

type chapaResponse[T any] struct {
	Message json.RawMessage `json:"message"`
	Status  string          `json:"status"`
	Data    *T              `json:"data"`
}

type chapaCheckoutData struct {
	CheckoutURL string `json:"checkout_url"`
}

type chapaVerifyData struct {
	TxRef    string          `json:"tx_ref"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Initialize creates a hosted checkout for req.
func (c *ChapaClient) Initialize(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	body := chapaInitializeRequest{
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.Phone,
		TxRef:       req.TxRef,
		CallbackURL: c.callbackURL,
		ReturnURL:   c.returnURL,
		Customization: chapaCustomization{
			Title:       req.Title,
			Description: req.Description,
		},
	}

	var resp chapaResponse[chapaCheckoutData]
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &resp); err != nil {
		return nil, err
	}
	if resp.Status != StatusSuccess || resp.Data == nil || resp.Data.CheckoutURL == "" {
		return nil, fmt.Errorf("%w: initialize rejected: %s", ErrGateway, message(resp.Message))
	}
	return &Checkout{CheckoutURL: resp.Data.CheckoutURL, TxRef: req.TxRef}, nil
}

// Verify asks Chapa for the status of txRef.
func (c *ChapaClient) Verify(ctx context.Context, txRef string) (*Verification, error) {
	var resp chapaResponse[chapaVerifyData]
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(txRef), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("%w: verify returned no data: %s", ErrGateway, message(resp.Message))
	}
	v := &Verification{
		TxRef:    resp.Data.TxRef,
		Status:   strings.ToLower(resp.Data.Status),
		Amount:   resp.Data.Amount,
		Currency: resp.Data.Currency,
	}
	if v.TxRef == "" {
		v.TxRef = txRef
	}
	if resp.Status != StatusSuccess && v.Status == StatusSuccess {
		v.Status = StatusPending
	}
	return v, nil
}

func (c *ChapaClient) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrGateway, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: %s", ErrGateway, resp.Status, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrGateway, err)
	}
	return nil
}

// message renders Chapa's message field, which is a string or an object of
// field errors.
func message(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
