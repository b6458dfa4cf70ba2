package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeexpayTestServer(t *testing.T, handler http.HandlerFunc) (*Feexpay, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewFeexpay(&FeexpayConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		ShopID:  "shop-1",
		Timeout: 5 * time.Second,
	}), srv
}

func TestFeexpayInitLocalPayment(t *testing.T) {
	var captured feexpayChargeRequest
	p, _ := newFeexpayTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transactions/requesttopay/mtn", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(map[string]string{
			"reference": captured.Reference,
			"status":    "PENDING",
		})
	})

	result, err := p.InitLocalPayment(context.Background(), LocalPaymentRequest{
		Amount:    5000,
		Phone:     "22990000000",
		Operator:  "mtn",
		FullName:  "Awa Diallo",
		Reference: "PAY-ABC123",
	})
	require.NoError(t, err)

	assert.Equal(t, "PAY-ABC123", result.Reference)
	assert.Equal(t, "PENDING", result.RawStatus)
	assert.Equal(t, "shop-1", captured.Shop)
	assert.Equal(t, int64(5000), captured.Amount)
	assert.Equal(t, "22990000000", captured.PhoneNumber)
}

func TestFeexpayInitFallsBackToLocalReference(t *testing.T) {
	p, _ := newFeexpayTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Some responses omit the reference entirely.
		json.NewEncoder(w).Encode(map[string]string{"status": "PENDING"})
	})

	result, err := p.InitLocalPayment(context.Background(), LocalPaymentRequest{
		Amount:    1000,
		Phone:     "22990000000",
		Operator:  "moov",
		Reference: "PAY-LOCAL1",
	})
	require.NoError(t, err)
	assert.Equal(t, "PAY-LOCAL1", result.Reference)
}

func TestFeexpayQueryStatusFieldVariants(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{"status field", map[string]any{"status": "SUCCESSFUL"}, "SUCCESSFUL"},
		{"state field", map[string]any{"state": "FAILED"}, "FAILED"},
		{"transaction_status field", map[string]any{"transaction_status": "PENDING"}, "PENDING"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := newFeexpayTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/transactions/status/PAY-REF1", r.URL.Path)
				json.NewEncoder(w).Encode(tc.payload)
			})

			result, err := p.QueryStatus(context.Background(), "PAY-REF1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.RawStatus)
		})
	}
}

func TestFeexpayQueryStatusWithAmount(t *testing.T) {
	p, _ := newFeexpayTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "SUCCESSFUL",
			"amount": 4950.0,
		})
	})

	result, err := p.QueryStatus(context.Background(), "PAY-REF1")
	require.NoError(t, err)
	require.NotNil(t, result.Amount)
	assert.Equal(t, int64(4950), *result.Amount)
}

func TestFeexpayQueryStatusMissingField(t *testing.T) {
	p, _ := newFeexpayTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"message": "ok"})
	})

	_, err := p.QueryStatus(context.Background(), "PAY-REF1")
	require.Error(t, err)

	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "feexpay", provErr.Provider)
}

func TestFeexpayUpstreamErrorStatus(t *testing.T) {
	p, _ := newFeexpayTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.QueryStatus(context.Background(), "PAY-REF1")
	require.Error(t, err)

	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusBadGateway, provErr.StatusCode)
}
