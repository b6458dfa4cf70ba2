package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bellecare/server/internal/module/payment"
	"github.com/bellecare/server/internal/shared/config"
)

type fakeSender struct {
	recipients []string
	subjects   []string
	err        error
}

func (f *fakeSender) Send(_ context.Context, recipient, subject, _ string) error {
	f.recipients = append(f.recipients, recipient)
	f.subjects = append(f.subjects, subject)
	return f.err
}

func newNotificationFixture(t *testing.T) (*Service, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	svc := NewService(sender, &config.NotificationConfig{OperatorEmail: "owner@salon.test"}, zap.NewNop())
	return svc, sender
}

func TestPaymentSucceededNotifiesPayerAndOperator(t *testing.T) {
	svc, sender := newNotificationFixture(t)

	svc.PaymentSucceeded(context.Background(), &payment.Payment{
		Reference: "PAY-OK1",
		Phone:     "+22997000001",
		Amount:    5000,
	})

	require.Len(t, sender.recipients, 2)
	assert.Equal(t, "+22997000001", sender.recipients[0])
	assert.Equal(t, "owner@salon.test", sender.recipients[1])
}

func TestPaymentFailedNotifiesPayerAndOperator(t *testing.T) {
	svc, sender := newNotificationFixture(t)

	svc.PaymentFailed(context.Background(), &payment.Payment{
		Reference: "PAY-KO1",
		Phone:     "+22997000002",
	})

	require.Len(t, sender.recipients, 2)
	assert.Equal(t, "+22997000002", sender.recipients[0])
	assert.Equal(t, "owner@salon.test", sender.recipients[1])
	assert.Equal(t, "Payment failed", sender.subjects[0])
}

func TestPaymentSucceededWithoutPayerContact(t *testing.T) {
	svc, sender := newNotificationFixture(t)

	svc.PaymentSucceeded(context.Background(), &payment.Payment{Reference: "PAY-OK2"})

	require.Len(t, sender.recipients, 1)
	assert.Equal(t, "owner@salon.test", sender.recipients[0])
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	svc, sender := newNotificationFixture(t)
	sender.err = errors.New("smtp down")

	svc.PaymentSucceeded(context.Background(), &payment.Payment{
		Reference: "PAY-OK3",
		Phone:     "+22997000003",
	})

	// Both deliveries are still attempted even though the first one failed.
	assert.Len(t, sender.recipients, 2)
}

func TestNilSenderOnlyLogs(t *testing.T) {
	svc := NewService(nil, &config.NotificationConfig{OperatorEmail: "owner@salon.test"}, zap.NewNop())

	svc.PaymentSucceeded(context.Background(), &payment.Payment{Reference: "PAY-OK4", Phone: "+22997000004"})
	svc.PaymentFailed(context.Background(), &payment.Payment{Reference: "PAY-KO2"})
}
