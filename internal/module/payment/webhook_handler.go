package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bellecare/server/internal/module/payment/domain"
	"github.com/bellecare/server/internal/shared/metrics"
)

// WebhookHandler receives provider status notifications, parses the
// provider-specific payload into the canonical event shape and feeds the
// reconciliation engine.
type WebhookHandler struct {
	reconciler *Reconciler
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(reconciler *Reconciler, m *metrics.Metrics, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, metrics: m, logger: logger}
}

// RegisterRoutes registers the webhook routes.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/payment/:provider", h.HandleProviderWebhook)
}

type feexpayWebhookPayload struct {
	Reference string   `json:"reference"`
	Status    string   `json:"status"`
	Amount    *float64 `json:"amount"`
}

type fedapayWebhookPayload struct {
	Entity struct {
		Reference string   `json:"reference"`
		Status    string   `json:"status"`
		Amount    *float64 `json:"amount"`
	} `json:"entity"`
}

// HandleProviderWebhook handles POST /webhook/payment/:provider.
func (h *WebhookHandler) HandleProviderWebhook(c *gin.Context) {
	providerName := domain.Provider(c.Param("provider"))
	if !providerName.Valid() {
		h.countWebhook(providerName, "bad_provider")
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", zap.Error(err))
		h.countWebhook(providerName, "bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	event, err := parseWebhookPayload(providerName, body)
	if err != nil {
		h.logger.Warn("malformed webhook payload",
			zap.String("provider", string(providerName)),
			zap.Error(err),
		)
		h.countWebhook(providerName, "bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.reconciler.Process(c.Request.Context(), *event)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			h.logger.Warn("webhook for unknown reference",
				zap.String("provider", string(providerName)),
				zap.String("reference", event.Reference),
			)
			h.countWebhook(providerName, "not_found")
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
			return
		}
		h.logger.Error("webhook processing failed",
			zap.String("provider", string(providerName)),
			zap.String("reference", event.Reference),
			zap.Error(err),
		)
		h.countWebhook(providerName, "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	h.countWebhook(providerName, "processed")
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"reference":  result.Payment.Reference,
		"old_status": result.OldStatus,
		"new_status": result.NewStatus,
	})
}

// parseWebhookPayload maps a provider payload to the canonical event shape.
func parseWebhookPayload(providerName domain.Provider, body []byte) (*StatusEvent, error) {
	switch providerName {
	case domain.ProviderFeexpay:
		var payload feexpayWebhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, errors.New("invalid json body")
		}
		if payload.Reference == "" || payload.Status == "" {
			return nil, errors.New("missing reference or status")
		}
		return &StatusEvent{
			Provider:  providerName,
			Reference: payload.Reference,
			RawStatus: payload.Status,
			Amount:    floatToAmount(payload.Amount),
		}, nil

	case domain.ProviderFedapay:
		var payload fedapayWebhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, errors.New("invalid json body")
		}
		if payload.Entity.Reference == "" || payload.Entity.Status == "" {
			return nil, errors.New("missing entity reference or status")
		}
		return &StatusEvent{
			Provider:  providerName,
			Reference: payload.Entity.Reference,
			RawStatus: payload.Entity.Status,
			Amount:    floatToAmount(payload.Entity.Amount),
		}, nil

	default:
		return nil, errors.New("unknown provider")
	}
}

func floatToAmount(f *float64) *int64 {
	if f == nil {
		return nil
	}
	v := int64(*f)
	return &v
}

func (h *WebhookHandler) countWebhook(providerName domain.Provider, outcome string) {
	if h.metrics != nil {
		h.metrics.WebhookEvents.WithLabelValues(string(providerName), outcome).Inc()
	}
}
