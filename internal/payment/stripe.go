package payment

import (
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
)

// LiveStripeClient talks to the real stripe API using the package-level key.
type LiveStripeClient struct{}

func NewLiveStripeClient(apiKey string) (*LiveStripeClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("stripe api key is not set")
	}
	stripe.Key = apiKey
	return &LiveStripeClient{}, nil
}

func (l *LiveStripeClient) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.New(params)
}

func (l *LiveStripeClient) GetCheckoutSession(sessionID string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.Get(sessionID, params)
}
