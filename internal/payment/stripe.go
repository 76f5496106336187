// internal/payment/stripe.go
package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/webhook"
)

const (
	metaUserID  = "user_id"
	metaProduct = "product"
)

var (
	ErrUnknownProduct   = errors.New("unknown product")
	ErrPriceMissing     = errors.New("no price configured for product")
	ErrUnhandledEvent   = errors.New("unhandled event")
	ErrMissingReference = errors.New("missing user reference")
)

// Product is something a user can buy: a credit pack or a premium plan.
type Product struct {
	ID      string
	Credits int
	// Premium plans are billed as Stripe subscriptions.
	Premium bool
}

var products = map[string]Product{
	"credits_5":  {ID: "credits_5", Credits: 5},
	"credits_15": {ID: "credits_15", Credits: 15},
	"credits_30": {ID: "credits_30", Credits: 30},
	"daily":      {ID: "daily", Premium: true},
	"weekly":     {ID: "weekly", Premium: true},
	"monthly":    {ID: "monthly", Premium: true},
}

func LookupProduct(id string) (Product, bool) {
	p, ok := products[id]
	return p, ok
}

// ProductIDs lists the products in display order.
func ProductIDs() []string {
	return []string{"credits_5", "credits_15", "credits_30", "daily", "weekly", "monthly"}
}

// Purchase is the effect of a completed checkout or an ended subscription on a user's entitlement.
type Purchase struct {
	UserID    string
	Product   string
	SessionID string
	Credits   int
	Premium   bool
	// Revoke means a premium subscription ended.
	Revoke bool
}

type Config struct {
	SecretKey  string
	PublicKey  string
	WebhookKey string
	SuccessURL string
	CancelURL  string
	Prices     map[string]string
}

type StripeClient struct {
	secretKey     string
	publicKey     string
	webhookSecret string
	successURL    string
	cancelURL     string
	prices        map[string]string

	// ability to stub the Stripe API (for tests)
	newSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewStripeClient(config Config) *StripeClient {
	// Set the secret key for backend operations
	stripe.Key = config.SecretKey

	prices := make(map[string]string, len(config.Prices))
	for k, v := range config.Prices {
		prices[k] = v
	}

	return &StripeClient{
		secretKey:     config.SecretKey,
		publicKey:     config.PublicKey,
		webhookSecret: config.WebhookKey,
		successURL:    config.SuccessURL,
		cancelURL:     config.CancelURL,
		prices:        prices,
		newSession:    session.New,
	}
}

func (s *StripeClient) GetWebhookSecret() string {
	return s.webhookSecret
}

// Enabled reports whether checkout can be offered at all.
func (s *StripeClient) Enabled() bool {
	return s.secretKey != "" && len(s.prices) > 0
}

// CreateCheckoutSession returns the session id and the hosted checkout URL. Empty success/cancel URLs fall
// back to the configured ones.
func (s *StripeClient) CreateCheckoutSession(userID, productID, successURL, cancelURL string) (string, string, error) {
	product, ok := LookupProduct(productID)
	if !ok {
		return "", "", fmt.Errorf("%q: %w", productID, ErrUnknownProduct)
	}
	priceID := s.prices[productID]
	if priceID == "" {
		return "", "", fmt.Errorf("%q: %w", productID, ErrPriceMissing)
	}
	if successURL == "" {
		successURL = s.successURL
	}
	if cancelURL == "" {
		cancelURL = s.cancelURL
	}

	// Ensure we're using the secret key for API operations
	if stripe.Key != s.secretKey {
		stripe.Key = s.secretKey
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(userID),
	}
	params.AddMetadata(metaUserID, userID)
	params.AddMetadata(metaProduct, product.ID)

	if product.Premium {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		// subscription events carry their own metadata, not the session's
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				metaUserID:  userID,
				metaProduct: product.ID,
			},
		}
	}

	sess, err := s.newSession(params)
	if err != nil {
		return "", "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess.ID, sess.URL, nil
}

func (s *StripeClient) VerifyWebhookSignature(payload []byte, sig string, webhookSecret string) (stripe.Event, error) {
	if webhookSecret == "" {
		return stripe.Event{}, fmt.Errorf("webhook secret is not configured")
	}
	return webhook.ConstructEvent(payload, sig, webhookSecret)
}

// ParsePurchase turns a verified webhook event into the entitlement change it implies.
// Events that change nothing return ErrUnhandledEvent.
func ParsePurchase(event stripe.Event) (*Purchase, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("event %s without data: %w", event.ID, ErrUnhandledEvent)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session: %w", err)
		}
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			return nil, fmt.Errorf("session %s unpaid: %w", sess.ID, ErrUnhandledEvent)
		}

		userID := sess.ClientReferenceID
		if userID == "" {
			userID = sess.Metadata[metaUserID]
		}
		if userID == "" {
			return nil, fmt.Errorf("session %s: %w", sess.ID, ErrMissingReference)
		}

		product, ok := LookupProduct(sess.Metadata[metaProduct])
		if !ok {
			return nil, fmt.Errorf("session %s product %q: %w", sess.ID, sess.Metadata[metaProduct], ErrUnknownProduct)
		}

		return &Purchase{
			UserID:    userID,
			Product:   product.ID,
			SessionID: sess.ID,
			Credits:   product.Credits,
			Premium:   product.Premium,
		}, nil

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to parse subscription: %w", err)
		}
		userID := sub.Metadata[metaUserID]
		if userID == "" {
			return nil, fmt.Errorf("subscription %s: %w", sub.ID, ErrMissingReference)
		}
		return &Purchase{
			UserID:  userID,
			Product: sub.Metadata[metaProduct],
			Revoke:  true,
		}, nil

	default:
		return nil, fmt.Errorf("event type %s: %w", event.Type, ErrUnhandledEvent)
	}
}
