package provider

import (
	"context"
	"fmt"
)

// Payer carries the payer details a provider transaction needs.
type Payer struct {
	ID       string
	FullName string
	Email    string
	Phone    string
}

// Transaction is a provider-side transaction opened for a hosted-redirect
// flow. The caller persists a pending payment record referencing it before
// any confirmation arrives.
type Transaction struct {
	TransactionID string
	Reference     string
	RedirectURL   string
	Amount        int64
}

// LocalPaymentRequest describes an out-of-band mobile-money charge.
type LocalPaymentRequest struct {
	Amount    int64
	Phone     string
	Operator  string
	FullName  string
	Email     string
	Reference string
}

// LocalPaymentResult is the provider's acknowledgement of a local charge.
// No redirect occurs; final status arrives by webhook or polling.
type LocalPaymentResult struct {
	Reference string
	RawStatus string
}

// StatusResult is a raw provider status read from the polling endpoint.
// RawStatus is provider vocabulary; normalization happens in the domain.
type StatusResult struct {
	RawStatus string
	Amount    *int64
}

// Error is a typed upstream failure. Adapters surface it without mutating
// any payment record; no record is created for a transaction that never opened.
type Error struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Message)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Provider is the common contract of all payment providers.
type Provider interface {
	// Name returns the provider name.
	Name() string
}

// RedirectProvider opens a hosted transaction and returns a redirect URL
// (FedaPay pattern). Confirmation arrives via browser callback or webhook.
type RedirectProvider interface {
	Provider

	// InitTransaction creates a remote transaction and returns the redirect
	// token/URL and the provider reference.
	InitTransaction(ctx context.Context, amount int64, description string, payer Payer) (*Transaction, error)
}

// LocalPaymentProvider triggers an out-of-band mobile-money charge and can be
// polled for status (FeexPay pattern).
type LocalPaymentProvider interface {
	Provider

	// InitLocalPayment triggers the charge. The returned reference is the
	// join key for webhook and polling reconciliation.
	InitLocalPayment(ctx context.Context, req LocalPaymentRequest) (*LocalPaymentResult, error)

	// QueryStatus reads the current provider status for a reference.
	QueryStatus(ctx context.Context, reference string) (*StatusResult, error)
}
