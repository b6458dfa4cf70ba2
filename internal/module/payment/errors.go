package payment

import "errors"

// Module errors.
var (
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrEntityNotFound        = errors.New("payable entity not found")
	ErrUnknownProvider       = errors.New("unknown payment provider")
	ErrInvalidPaymentType    = errors.New("payment type not valid for entity type")
	ErrAmountNotConfigured   = errors.New("no amount configured for payment type")
	ErrNoPayerResolvable     = errors.New("no payer resolvable for payment")
	ErrPromoCodeInvalid      = errors.New("promo code unknown or not applicable")
	ErrProviderNotRegistered = errors.New("payment provider not registered")
	ErrPollNotSupported      = errors.New("provider does not support status polling")
)
