package promo

import "errors"

// Module errors.
var (
	ErrCodeNotFound  = errors.New("promo code not found")
	ErrUsageNotFound = errors.New("promo code usage not found")
)
