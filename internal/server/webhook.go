package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"fitness-bot/internal/payment"
)

const maxWebhookBody = 64 << 10

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if s.deps.Payments == nil {
		http.Error(w, "Webhook not configured", http.StatusServiceUnavailable)
		return
	}

	// Read request body
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.logger.Errorw("Failed to read webhook body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	// Get webhook secret
	webhookSecret := s.deps.Payments.GetWebhookSecret()
	if webhookSecret == "" {
		s.logger.Error("Webhook secret is not configured")
		http.Error(w, "Webhook not configured", http.StatusInternalServerError)
		return
	}

	// Verify Stripe signature
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		s.logger.Error("Missing Stripe signature header")
		http.Error(w, "Missing signature", http.StatusBadRequest)
		return
	}

	event, err := s.deps.Payments.VerifyWebhookSignature(body, signature, webhookSecret)
	if err != nil {
		s.logger.Errorw("Failed to verify webhook signature", "error", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	purchase, err := payment.ParsePurchase(event)
	switch {
	case errors.Is(err, payment.ErrUnhandledEvent):
		s.logger.Debugw("Ignoring webhook event", "type", event.Type, "event_id", event.ID)
	case err != nil:
		// malformed for us; retrying will not help
		s.logger.Errorw("Failed to decode webhook event", "type", event.Type, "event_id", event.ID, "error", err)
	default:
		if err := s.applyPurchase(r.Context(), *purchase); err != nil {
			s.logger.Errorw("Failed to apply purchase", "user_id", purchase.UserID, "product", purchase.Product, "error", err)
			// a non-2xx makes Stripe deliver the event again
			http.Error(w, "Failed to apply purchase", http.StatusInternalServerError)
			return
		}
	}

	// Respond with 200 OK to acknowledge receipt
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Webhook received"))
}

// applyPurchase turns a purchase into profile changes: credits for packs, the premium flag for plans.
func (s *Server) applyPurchase(ctx context.Context, p payment.Purchase) error {
	switch {
	case p.Revoke:
		if _, err := s.deps.Profiles.SetPremium(ctx, p.UserID, false); err != nil {
			return err
		}
	case p.Premium:
		if _, err := s.deps.Profiles.SetPremium(ctx, p.UserID, true); err != nil {
			return err
		}
	case p.Credits > 0:
		if _, err := s.deps.Profiles.GrantCredits(ctx, p.UserID, p.Credits); err != nil {
			return err
		}
	}

	if s.deps.Metrics != nil && !p.Revoke {
		s.deps.Metrics.CounterPurchases.WithLabelValues(p.Product).Inc()
	}
	s.logger.Infow("Purchase applied", "user_id", p.UserID, "product", p.Product, "revoke", p.Revoke)

	if s.deps.OnPurchase != nil {
		s.deps.OnPurchase(ctx, p)
	}
	return nil
}
