package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bellecare/server/internal/module/payment/domain"
	"github.com/bellecare/server/internal/module/payment/provider"
	"github.com/bellecare/server/internal/shared/metrics"
)

// Service implements payment initiation and status queries.
type Service struct {
	repo       Repository
	resolver   *TypeResolver
	registry   *ProviderRegistry
	reconciler *Reconciler
	promo      PromoCompensator
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewService creates a new payment service.
func NewService(
	repo Repository,
	resolver *TypeResolver,
	registry *ProviderRegistry,
	reconciler *Reconciler,
	promo PromoCompensator,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:       repo,
		resolver:   resolver,
		registry:   registry,
		reconciler: reconciler,
		promo:      promo,
		metrics:    m,
		logger:     logger,
	}
}

// InitPaymentRequest carries one payment initiation.
type InitPaymentRequest struct {
	Provider    domain.Provider
	PaymentType PaymentType
	EntityType  EntityType
	EntityID    uuid.UUID
	CurrentUser uuid.UUID

	// PromoCode optionally registers a discount attempt; the code is
	// confirmed against its window and caps only at payment success.
	PromoCode string

	// FeexPay fields, collected from the phone/operator form.
	Phone    string
	Operator string
	FullName string
	Email    string
}

// InitPaymentResponse is the initiation outcome. RedirectURL is set for the
// hosted-redirect pattern; for local payments the payer waits on Reference.
type InitPaymentResponse struct {
	Reference   string        `json:"reference"`
	Status      domain.Status `json:"status"`
	Amount      int64         `json:"amount"`
	Currency    string        `json:"currency"`
	RedirectURL string        `json:"redirect_url,omitempty"`
}

// InitPayment resolves the payable entity, opens a provider transaction and
// persists a pending payment record. No record is created when the provider
// call fails: a transaction that never opened leaves no trail.
func (s *Service) InitPayment(ctx context.Context, req *InitPaymentRequest) (*InitPaymentResponse, error) {
	if !req.Provider.Valid() {
		return nil, ErrUnknownProvider
	}
	if !s.resolver.ValidatePaymentTypeForEntity(req.PaymentType, req.EntityType) {
		return nil, ErrInvalidPaymentType
	}

	entity, err := s.resolver.ResolveEntity(ctx, req.EntityType, req.EntityID)
	if err != nil {
		return nil, err
	}

	payerID, err := s.resolver.ResolvePayer(entity, req.CurrentUser)
	if err != nil {
		return nil, err
	}

	amount, err := s.resolver.Amount(ctx, req.PaymentType, entity)
	if err != nil {
		return nil, err
	}
	// Zero signals "not configured"; it is a hard failure, never a free
	// transaction.
	if amount <= 0 {
		return nil, ErrAmountNotConfigured
	}

	if req.PromoCode != "" {
		if _, ok := entity.(DiscountableEntity); !ok || s.promo == nil {
			return nil, ErrPromoCodeInvalid
		}
		attempt, err := s.promo.RecordAttempt(ctx, req.PromoCode, string(req.EntityType), req.EntityID, payerID, amount)
		if err != nil {
			return nil, err
		}
		// The provider charges the discounted amount; the usage stays
		// attempted until the reconciliation engine confirms the payment.
		if attempt.FinalAmount > 0 {
			amount = attempt.FinalAmount
		}
	}

	description := s.resolver.Description(entity)

	record := &Payment{
		ID:          uuid.New(),
		Provider:    req.Provider,
		PaymentType: req.PaymentType,
		EntityType:  req.EntityType,
		EntityID:    &req.EntityID,
		Amount:      amount,
		Currency:    "XOF",
		Status:      domain.StatusPending,
		Phone:       req.Phone,
		PayerID:     &payerID,
		Description: description,
	}

	var redirectURL string
	switch req.Provider {
	case domain.ProviderFedapay:
		p, err := s.registry.Redirect(string(req.Provider))
		if err != nil {
			return nil, err
		}
		tx, err := p.InitTransaction(ctx, amount, description, provider.Payer{
			ID:       payerID.String(),
			FullName: req.FullName,
			Email:    req.Email,
			Phone:    req.Phone,
		})
		if err != nil {
			s.logger.Warn("fedapay transaction init failed", zap.Error(err))
			return nil, err
		}
		record.TransactionID = tx.TransactionID
		record.Reference = tx.Reference
		redirectURL = tx.RedirectURL

	case domain.ProviderFeexpay:
		p, err := s.registry.Local(string(req.Provider))
		if err != nil {
			return nil, err
		}
		reference := newReference()
		res, err := p.InitLocalPayment(ctx, provider.LocalPaymentRequest{
			Amount:    amount,
			Phone:     req.Phone,
			Operator:  req.Operator,
			FullName:  req.FullName,
			Email:     req.Email,
			Reference: reference,
		})
		if err != nil {
			s.logger.Warn("feexpay charge init failed", zap.Error(err))
			return nil, err
		}
		record.Reference = res.Reference
		record.TransactionID = res.Reference
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("persist payment record: %w", err)
	}

	if s.metrics != nil {
		s.metrics.PaymentsInitiated.WithLabelValues(string(req.Provider), string(req.PaymentType)).Inc()
	}
	s.logger.Info("payment initiated",
		zap.String("payment_id", record.ID.String()),
		zap.String("provider", string(req.Provider)),
		zap.String("reference", record.Reference),
		zap.Int64("amount", amount),
	)

	return &InitPaymentResponse{
		Reference:   record.Reference,
		Status:      record.Status,
		Amount:      amount,
		Currency:    record.Currency,
		RedirectURL: redirectURL,
	}, nil
}

// StatusResponse is the polling endpoint's answer.
type StatusResponse struct {
	Status      domain.Status   `json:"status"`
	CheckMethod string          `json:"check_method"`
	Reference   string          `json:"reference"`
	Provider    domain.Provider `json:"provider"`
}

// GetStatus returns the last known status for a reference. With forceAPI on a
// still-pending FeexPay record it performs a live provider query first; the
// result funnels through the same reconciliation engine as webhooks, so the
// two channels cannot diverge. FedaPay resolves via its callback and is never
// polled.
func (s *Service) GetStatus(ctx context.Context, reference string, forceAPI bool) (*StatusResponse, error) {
	record, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	checkMethod := "webhook"
	if forceAPI && record.Status.Class() == domain.ClassPending && record.Provider == domain.ProviderFeexpay {
		p, err := s.registry.Local(string(record.Provider))
		if err != nil {
			return nil, err
		}
		status, err := p.QueryStatus(ctx, reference)
		if err != nil {
			return nil, err
		}
		result, err := s.reconciler.Process(ctx, StatusEvent{
			Provider:  record.Provider,
			Reference: reference,
			RawStatus: status.RawStatus,
			Amount:    status.Amount,
		})
		if err != nil {
			return nil, err
		}
		record = result.Payment
		checkMethod = "api"
	}

	return &StatusResponse{
		Status:      record.Status,
		CheckMethod: checkMethod,
		Reference:   record.Reference,
		Provider:    record.Provider,
	}, nil
}

// GetByReference returns the full payment record for a reference.
func (s *Service) GetByReference(ctx context.Context, reference string) (*Payment, error) {
	return s.repo.GetByReference(ctx, reference)
}

// newReference generates a provider-correlatable unique payment token.
func newReference() string {
	return "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:20])
}
