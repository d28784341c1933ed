// Package payment adapts the Stripe API to the service layer's PaymentGateway.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"

	"github.com/flicky/storefront-api/internal/model"
)

// StripeConfig configures the gateway. URL overrides the API base and is
// only set in tests.
type StripeConfig struct {
	SecretKey string
	Timeout   time.Duration
	URL       string
}

type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.URL != "" {
		backendCfg.URL = stripe.String(cfg.URL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	return &StripeGateway{
		api: client.New(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}),
	}
}

// CreateIntent asks Stripe for a payment intent with automatic payment
// methods enabled.
func (g *StripeGateway) CreateIntent(ctx context.Context, req model.IntentRequest) (*model.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", strconv.FormatInt(req.UserID, 10))

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, processorError(err)
	}

	return &model.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

// ProcessorError is a failure reported by Stripe or by the transport to it.
type ProcessorError struct {
	Message string
	Code    string
	Status  int
}

func (e *ProcessorError) Error() string { return e.Message }

func processorError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		msg := stripeErr.Msg
		if msg == "" {
			msg = fmt.Sprintf("stripe request failed with status %d", stripeErr.HTTPStatusCode)
		}
		return &ProcessorError{Message: msg, Code: string(stripeErr.Code), Status: stripeErr.HTTPStatusCode}
	}
	return &ProcessorError{Message: err.Error()}
}
