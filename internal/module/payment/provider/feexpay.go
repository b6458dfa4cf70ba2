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

// FeexpayConfig holds FeexPay adapter configuration.
type FeexpayConfig struct {
	BaseURL string
	APIKey  string
	ShopID  string
	Timeout time.Duration
}

// Feexpay implements the async local-payment pattern: an out-of-band
// mobile-money charge is triggered, no redirect occurs, and the final status
// is learned by webhook or explicit polling.
type Feexpay struct {
	cfg     *FeexpayConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewFeexpay creates a FeexPay adapter.
func NewFeexpay(cfg *FeexpayConfig) *Feexpay {
	return &Feexpay{
		cfg:    cfg,
		client: newHTTPClient(cfg.Timeout),
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "feexpay",
			Timeout: 60 * time.Second,
		}),
	}
}

// Name returns the provider name.
func (p *Feexpay) Name() string {
	return "feexpay"
}

type feexpayChargeRequest struct {
	Shop        string `json:"shop"`
	Amount      int64  `json:"amount"`
	PhoneNumber string `json:"phoneNumber"`
	Fullname    string `json:"fullname,omitempty"`
	Email       string `json:"email,omitempty"`
	Reference   string `json:"reference"`
}

type feexpayChargeResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// InitLocalPayment triggers the mobile-money charge for the payer's phone.
func (p *Feexpay) InitLocalPayment(ctx context.Context, req LocalPaymentRequest) (*LocalPaymentResult, error) {
	body, err := p.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("/transactions/requesttopay/%s", req.Operator),
		feexpayChargeRequest{
			Shop:        p.cfg.ShopID,
			Amount:      req.Amount,
			PhoneNumber: req.Phone,
			Fullname:    req.FullName,
			Email:       req.Email,
			Reference:   req.Reference,
		})
	if err != nil {
		return nil, err
	}

	var resp feexpayChargeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Provider: p.Name(), Op: "requesttopay", Message: "malformed charge response", Err: err}
	}

	reference := resp.Reference
	if reference == "" {
		reference = req.Reference
	}
	return &LocalPaymentResult{Reference: reference, RawStatus: resp.Status}, nil
}

// QueryStatus reads the provider-side status for a reference. FeexPay's
// status endpoint is not stable about the field name, so status, state and
// transaction_status are all accepted.
func (p *Feexpay) QueryStatus(ctx context.Context, reference string) (*StatusResult, error) {
	body, err := p.doJSON(ctx, http.MethodGet, "/transactions/status/"+reference, nil)
	if err != nil {
		return nil, err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &Error{Provider: p.Name(), Op: "status", Message: "malformed status response", Err: err}
	}

	result := &StatusResult{}
	for _, key := range []string{"status", "state", "transaction_status"} {
		if s, ok := payload[key].(string); ok && s != "" {
			result.RawStatus = s
			break
		}
	}
	if result.RawStatus == "" {
		return nil, &Error{Provider: p.Name(), Op: "status", Message: "status response missing status field"}
	}
	if amount, ok := payload["amount"].(float64); ok {
		v := int64(amount)
		result.Amount = &v
	}
	return result, nil
}

// doJSON performs one API call through the circuit breaker and returns the
// raw response body of a 2xx answer.
func (p *Feexpay) doJSON(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
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
