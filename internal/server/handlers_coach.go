package server

import (
	"errors"
	"net/http"
	"strings"

	"fitness-bot/internal/coach"
	"fitness-bot/internal/payment"
)

type coachRequest struct {
	Message string `json:"message"`
	Locale  string `json:"locale"`
}

func decodeCoachRequest(w http.ResponseWriter, r *http.Request) (coachRequest, bool) {
	var req coachRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON: "+err.Error())
		return req, false
	}
	if strings.TrimSpace(req.Message) == "" {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "message is required")
		return req, false
	}
	return req, true
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCoachRequest(w, r)
	if !ok {
		return
	}

	reply, err := s.deps.Coach.Ask(r.Context(), userID(r), req.Message, req.Locale)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"reply": reply})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCoachRequest(w, r)
	if !ok {
		return
	}

	res, err := s.deps.Coach.GenerateProgram(r.Context(), userID(r), req.Message, req.Locale)
	s.writeCoachResult(w, r, req.Locale, res, err)
}

func (s *Server) handleRevise(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCoachRequest(w, r)
	if !ok {
		return
	}

	res, err := s.deps.Coach.ReviseProgram(r.Context(), userID(r), req.Message, req.Locale)
	s.writeCoachResult(w, r, req.Locale, res, err)
}

// writeCoachResult uses the localized user message for failures the user can act on.
func (s *Server) writeCoachResult(w http.ResponseWriter, r *http.Request, locale string, res *coach.Result, err error) {
	if err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError && coach.Classify(err) == coach.ClassGeneric {
			s.logger.Errorw("Program generation failed", "path", r.URL.Path, "error", err)
		}
		writeFailure(w, status, code, coach.UserMessage(err, locale))
		return
	}

	payload := map[string]any{
		"program": res.Program,
		"created": res.Created,
	}
	if res.Credits != nil {
		payload["remaining"] = res.Credits.Remaining
		payload["unlimited"] = res.Credits.Unlimited
	}
	writeSuccess(w, http.StatusOK, payload)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.deps.Payments == nil || !s.deps.Payments.Enabled() {
		writeFailure(w, http.StatusServiceUnavailable, codeUnavailable, "payments are not configured")
		return
	}

	var req struct {
		Product    string `json:"product"`
		SuccessURL string `json:"successUrl"`
		CancelURL  string `json:"cancelUrl"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON: "+err.Error())
		return
	}

	uid := userID(r)
	if _, err := s.deps.Profiles.Get(r.Context(), uid); err != nil {
		s.writeError(w, r, err)
		return
	}

	sessionID, url, err := s.deps.Payments.CreateCheckoutSession(uid, req.Product, req.SuccessURL, req.CancelURL)
	if err != nil {
		if errors.Is(err, payment.ErrUnknownProduct) || errors.Is(err, payment.ErrPriceMissing) {
			writeFailure(w, http.StatusBadRequest, codeBadRequest, err.Error())
			return
		}
		s.logger.Errorw("Failed to create Stripe session", "user_id", uid, "error", err)
		writeFailure(w, http.StatusBadGateway, codeUnavailable, "checkout is unavailable")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"sessionId": sessionID, "url": url})
}
