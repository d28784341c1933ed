package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flicky/storefront-api/internal/metrics"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

// maxIntentAmount is the largest amount, in minor units, the processor accepts.
const maxIntentAmount int64 = 99_999_999

// PaymentGateway requests authorization handles from the payment processor.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req model.IntentRequest) (*model.PaymentIntent, error)
}

type PaymentService struct {
	productRepo repository.ProductLookup
	gateway     PaymentGateway
	currency    string
	timeout     time.Duration
	metrics     *metrics.Metrics
}

func NewPaymentService(
	productRepo repository.ProductLookup,
	gateway PaymentGateway,
	currency string,
	timeout time.Duration,
	m *metrics.Metrics,
) *PaymentService {
	return &PaymentService{
		productRepo: productRepo,
		gateway:     gateway,
		currency:    currency,
		timeout:     timeout,
		metrics:     m,
	}
}

// CreatePaymentIntent prices the cart the same way order creation does and
// asks the processor for an intent of that amount. Nothing is persisted.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, who model.Identity, lines []model.CartLine) (*model.PaymentIntent, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.CreatePaymentIntent",
		trace.WithAttributes(attribute.Int64("user.id", who.UserID)))
	defer span.End()

	quote, err := quoteCart(ctx, s.productRepo, lines)
	if err != nil {
		s.metrics.PaymentIntent("rejected")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	amount, err := quote.MinorUnits()
	if err != nil || amount > maxIntentAmount {
		s.metrics.PaymentIntent("rejected")
		span.SetStatus(codes.Error, ErrAmountTooLarge.Error())
		return nil, ErrAmountTooLarge
	}
	span.SetAttributes(attribute.Int64("payment.amount", amount), attribute.String("payment.currency", s.currency))

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	intent, err := s.gateway.CreateIntent(ctx, model.IntentRequest{
		Amount:   amount,
		Currency: s.currency,
		UserID:   who.UserID,
	})
	if err != nil {
		s.metrics.PaymentIntent("gateway_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway error")
		return nil, &GatewayError{Message: err.Error(), Err: err}
	}

	s.metrics.PaymentIntent("created")
	return intent, nil
}
