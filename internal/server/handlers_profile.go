package server

import (
	"net/http"

	"fitness-bot/internal/models"
	"fitness-bot/internal/profile"

	"github.com/go-chi/chi/v5"
)

func userID(r *http.Request) string {
	return chi.URLParam(r, "uid")
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var np models.NewProfile
	if err := decodeBody(r, &np); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON: "+err.Error())
		return
	}

	p, err := s.deps.Profiles.Create(r.Context(), userID(r), np)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{"profile": p})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Profiles.Get(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"profile": p})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch models.ProfilePatch
	if err := decodeBody(r, &patch); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON: "+err.Error())
		return
	}

	p, err := s.deps.Profiles.UpdateProfile(r.Context(), userID(r), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"profile": p})
}

func (s *Server) handleAddXP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := s.deps.Profiles.AddXP(r.Context(), userID(r), req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"result": res})
}

func (s *Server) handleCompleteSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExerciseID string `json:"exerciseId"`
		SetIndex   int    `json:"setIndex"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := s.deps.Profiles.CompleteSet(r.Context(), userID(r), req.ExerciseID, req.SetIndex)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"result": res})
}

func (s *Server) handleResetCompletedSets(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Profiles.ResetCompletedSets(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"profile": p})
}

func (s *Server) handleUpdateActiveDays(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Profiles.UpdateActiveDays(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"result": res})
}

// handleCheckCredits never fails on a missing profile; it reports canUse=false with reason no_profile.
func (s *Server) handleCheckCredits(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Profiles.Get(r.Context(), userID(r))
	if err != nil && !isNotFound(err) {
		s.writeError(w, r, err)
		return
	}

	check := profile.CheckCredits(p)
	payload := map[string]any{"canUse": check.CanUse, "reason": check.Reason}
	if p != nil {
		payload["credits"] = p.Credits
		payload["isPremium"] = p.IsPremium
	}
	writeSuccess(w, http.StatusOK, payload)
}

func (s *Server) handleUseCredit(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Profiles.UseCredit(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"remaining": res.Remaining, "unlimited": res.Unlimited})
}

func isNotFound(err error) bool {
	status, _ := classify(err)
	return status == http.StatusNotFound
}
