package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// FedapayConfig holds FedaPay adapter configuration.
type FedapayConfig struct {
	BaseURL     string
	APIKey      string
	CallbackURL string
	Timeout     time.Duration
}

// Fedapay implements the hosted-redirect pattern: a remote transaction is
// created, the payer is sent to the provider's checkout page, and the
// confirmation arrives through a browser callback or a server webhook.
type Fedapay struct {
	cfg     *FedapayConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewFedapay creates a FedaPay adapter.
func NewFedapay(cfg *FedapayConfig) *Fedapay {
	return &Fedapay{
		cfg:    cfg,
		client: newHTTPClient(cfg.Timeout),
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "fedapay",
			Timeout: 60 * time.Second,
		}),
	}
}

// Name returns the provider name.
func (p *Fedapay) Name() string {
	return "fedapay"
}

type fedapayTransactionRequest struct {
	Description string                 `json:"description"`
	Amount      int64                  `json:"amount"`
	Currency    fedapayCurrency        `json:"currency"`
	CallbackURL string                 `json:"callback_url,omitempty"`
	Customer    fedapayCustomerRequest `json:"customer"`
}

type fedapayCurrency struct {
	ISO string `json:"iso"`
}

type fedapayCustomerRequest struct {
	Firstname   string `json:"firstname,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

type fedapayTransactionResponse struct {
	Transaction struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"v1/transaction"`
}

type fedapayTokenResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// InitTransaction creates a remote transaction and generates its checkout
// token. The caller persists a pending payment record referencing the
// returned transaction id before any confirmation arrives.
func (p *Fedapay) InitTransaction(ctx context.Context, amount int64, description string, payer Payer) (*Transaction, error) {
	reqBody := fedapayTransactionRequest{
		Description: description,
		Amount:      amount,
		Currency:    fedapayCurrency{ISO: "XOF"},
		CallbackURL: p.cfg.CallbackURL,
		Customer: fedapayCustomerRequest{
			Firstname:   payer.FullName,
			Email:       payer.Email,
			PhoneNumber: payer.Phone,
		},
	}

	body, err := p.doJSON(ctx, http.MethodPost, "/transactions", reqBody)
	if err != nil {
		return nil, err
	}

	var txResp fedapayTransactionResponse
	if err := json.Unmarshal(body, &txResp); err != nil {
		return nil, &Error{Provider: p.Name(), Op: "init_transaction", Message: "malformed transaction response", Err: err}
	}
	if txResp.Transaction.ID == 0 || txResp.Transaction.Reference == "" {
		return nil, &Error{Provider: p.Name(), Op: "init_transaction", Message: "transaction response missing id or reference"}
	}

	tokenBody, err := p.doJSON(ctx, http.MethodPost, fmt.Sprintf("/transactions/%d/token", txResp.Transaction.ID), nil)
	if err != nil {
		return nil, err
	}

	var tokenResp fedapayTokenResponse
	if err := json.Unmarshal(tokenBody, &tokenResp); err != nil {
		return nil, &Error{Provider: p.Name(), Op: "token", Message: "malformed token response", Err: err}
	}
	if tokenResp.URL == "" {
		return nil, &Error{Provider: p.Name(), Op: "token", Message: "token response missing checkout url"}
	}

	return &Transaction{
		TransactionID: fmt.Sprintf("%d", txResp.Transaction.ID),
		Reference:     txResp.Transaction.Reference,
		RedirectURL:   tokenResp.URL,
		Amount:        amount,
	}, nil
}

// doJSON performs one API call through the circuit breaker and returns the
// raw response body of a 2xx answer.
func (p *Fedapay) doJSON(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	return p.breaker.Execute(func() ([]byte, error) {
		var reqBody io.Reader
		if payload != nil {
			raw, err := json.Marshal(payload)
			if err != nil {
				return nil, &Error{Provider: p.Name(), Op: path, Message: "encode request", Err: err}
			}
			reqBody = bytes.NewReader(raw)
		}

		req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, reqBody)
		if err != nil {
			return nil, &Error{Provider: p.Name(), Op: path, Message: "build request", Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, &Error{Provider: p.Name(), Op: path, Message: "request failed", Err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &Error{Provider: p.Name(), Op: path, Message: "read response", Err: err}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &Error{Provider: p.Name(), Op: path, StatusCode: resp.StatusCode, Message: "unexpected status"}
		}
		return body, nil
	})
}
