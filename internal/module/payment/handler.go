package payment

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bellecare/server/internal/module/payment/domain"
	"github.com/bellecare/server/internal/module/payment/provider"
	"github.com/bellecare/server/internal/shared/auth"
	apperrors "github.com/bellecare/server/internal/shared/errors"
)

// Handler handles HTTP requests for payment initiation and status queries.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new payment handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the payment routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/payment/:provider/:paymentType/:entityType/:entityId", h.InitPayment)
	r.GET("/payment/status/:reference", h.GetStatus)
	r.GET("/api/payment/status/:reference", h.GetStatusDetail)
}

// initPaymentBody carries the payer form fields: phone/operator for the
// FeexPay flow and an optional promo code for either provider.
type initPaymentBody struct {
	Phone     string `json:"phone"`
	Operator  string `json:"operator"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	PromoCode string `json:"promo_code"`
}

// InitPayment handles POST /payment/:provider/:paymentType/:entityType/:entityId.
func (h *Handler) InitPayment(c *gin.Context) {
	entityID, err := uuid.Parse(c.Param("entityId"))
	if err != nil {
		h.respondError(c, apperrors.NewBadRequest("INVALID_ENTITY_ID", "invalid entity id"))
		return
	}

	req := &InitPaymentRequest{
		Provider:    domain.Provider(c.Param("provider")),
		PaymentType: PaymentType(c.Param("paymentType")),
		EntityType:  EntityType(c.Param("entityType")),
		EntityID:    entityID,
		CurrentUser: auth.UserID(c),
	}

	// The FeexPay flow requires phone and operator; for FedaPay the body is
	// optional and only carries a promo code or payer contact details.
	var body initPaymentBody
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			h.respondError(c, apperrors.NewBadRequest("INVALID_BODY", "invalid request body"))
			return
		}
	}
	if req.Provider == domain.ProviderFeexpay && (body.Phone == "" || body.Operator == "") {
		h.respondError(c, apperrors.NewBadRequest("MISSING_PAYER_DETAILS", "phone and operator are required"))
		return
	}
	req.Phone = body.Phone
	req.Operator = body.Operator
	req.FullName = body.FullName
	req.Email = body.Email
	req.PromoCode = body.PromoCode

	resp, err := h.service.InitPayment(c.Request.Context(), req)
	if err != nil {
		h.respondInitError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetStatus handles GET /payment/status/:reference?force_api=bool.
func (h *Handler) GetStatus(c *gin.Context) {
	forceAPI, _ := strconv.ParseBool(c.Query("force_api"))

	resp, err := h.service.GetStatus(c.Request.Context(), c.Param("reference"), forceAPI)
	if err != nil {
		h.respondStatusError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetStatusDetail handles GET /api/payment/status/:reference, the
// machine-readable full payment detail.
func (h *Handler) GetStatusDetail(c *gin.Context) {
	record, err := h.service.GetByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.respondStatusError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment":       record,
		"is_successful": record.IsSuccessful(),
	})
}

func (h *Handler) respondInitError(c *gin.Context, err error) {
	var provErr *provider.Error
	switch {
	case errors.Is(err, ErrUnknownProvider), errors.Is(err, ErrInvalidPaymentType),
		errors.Is(err, ErrAmountNotConfigured), errors.Is(err, ErrNoPayerResolvable):
		h.respondError(c, apperrors.NewBadRequest("INVALID_PAYMENT_REQUEST", err.Error()))
	case errors.Is(err, ErrPromoCodeInvalid):
		h.respondError(c, apperrors.NewBadRequest("INVALID_PROMO_CODE", err.Error()))
	case errors.Is(err, ErrEntityNotFound):
		h.respondError(c, apperrors.NewNotFound("ENTITY_NOT_FOUND", "entity not found"))
	case errors.As(err, &provErr):
		h.logger.Error("provider failure during initiation", zap.Error(err))
		h.respondError(c, apperrors.NewUpstream("PROVIDER_UNAVAILABLE", "payment provider unavailable", err))
	default:
		h.logger.Error("payment initiation failed", zap.Error(err))
		h.respondError(c, apperrors.NewInternal(err))
	}
}

func (h *Handler) respondStatusError(c *gin.Context, err error) {
	var provErr *provider.Error
	switch {
	case errors.Is(err, ErrPaymentNotFound):
		h.respondError(c, apperrors.NewNotFound("PAYMENT_NOT_FOUND", "payment not found"))
	case errors.As(err, &provErr):
		h.logger.Error("provider failure during status query", zap.Error(err))
		h.respondError(c, apperrors.NewUpstream("PROVIDER_UNAVAILABLE", "payment provider unavailable", err))
	default:
		h.logger.Error("status query failed", zap.Error(err))
		h.respondError(c, apperrors.NewInternal(err))
	}
}

func (h *Handler) respondError(c *gin.Context, appErr *apperrors.AppError) {
	c.JSON(appErr.StatusCode, gin.H{"error": gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	}})
}
