package server

import (
	"context"
	"net/http"
	"strconv"

	"fitness-bot/internal/models"
	"fitness-bot/internal/program"

	"github.com/go-chi/chi/v5"
)

// dayRef is a {day} path segment: a day id or a numeric position. A segment naming an existing day id is
// taken as the id, even when it is numeric.
type dayRef struct {
	index int
	id    string
}

func (s *Server) resolveDayRef(ctx context.Context, uid, raw string) (dayRef, error) {
	i, err := strconv.Atoi(raw)
	if err != nil {
		return dayRef{index: -1, id: raw}, nil
	}
	current, err := s.deps.Programs.Get(ctx, uid)
	if err != nil {
		return dayRef{}, err
	}
	if program.DayIndex(current, raw) >= 0 {
		return dayRef{index: -1, id: raw}, nil
	}
	return dayRef{index: i}, nil
}

func (d dayRef) byID() bool {
	return d.id != ""
}

func (s *Server) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Programs.Get(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"program": p})
}

func (s *Server) handleSaveProgram(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Days []models.Day `json:"days"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON: "+err.Error())
		return
	}

	p, err := s.deps.Programs.Save(r.Context(), userID(r), req.Days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"program": p})
}

func (s *Server) handleDeleteProgram(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Programs.Delete(r.Context(), userID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

func (s *Server) handleAddDay(w http.ResponseWriter, r *http.Request) {
	var day models.Day
	if err := decodeBody(r, &day); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON: "+err.Error())
		return
	}

	id, p, err := s.deps.Programs.AddDay(r.Context(), userID(r), day)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{"dayId": id, "program": p})
}

func (s *Server) handleUpdateDay(w http.ResponseWriter, r *http.Request) {
	var patch models.DayPatch
	if err := decodeBody(r, &patch); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON: "+err.Error())
		return
	}

	s.respondProgram(w, r, func(ctx context.Context, uid string, day dayRef) (*models.Program, error) {
		if day.byID() {
			return s.deps.Programs.UpdateDayByID(ctx, uid, day.id, patch)
		}
		return s.deps.Programs.UpdateDay(ctx, uid, day.index, patch)
	})
}

func (s *Server) handleDeleteDay(w http.ResponseWriter, r *http.Request) {
	s.respondProgram(w, r, func(ctx context.Context, uid string, day dayRef) (*models.Program, error) {
		if day.byID() {
			return s.deps.Programs.DeleteDayByID(ctx, uid, day.id)
		}
		return s.deps.Programs.DeleteDay(ctx, uid, day.index)
	})
}

// handleMoveDay needs the day id; positions shift while moving.
func (s *Server) handleMoveDay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To int `json:"to"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON: "+err.Error())
		return
	}

	s.respondProgram(w, r, func(ctx context.Context, uid string, day dayRef) (*models.Program, error) {
		dayID := day.id
		if !day.byID() {
			current, err := s.deps.Programs.Get(ctx, uid)
			if err != nil {
				return nil, err
			}
			if day.index >= 0 && day.index < len(current.Days) {
				dayID = current.Days[day.index].ID
			}
		}
		return s.deps.Programs.MoveDay(ctx, uid, dayID, req.To)
	})
}

func (s *Server) handleAddExercise(w http.ResponseWriter, r *http.Request) {
	var e models.Exercise
	if err := decodeBody(r, &e); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON: "+err.Error())
		return
	}

	day, err := s.resolveDayRef(r.Context(), userID(r), chi.URLParam(r, "day"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var (
		id string
		p  *models.Program
	)
	if day.byID() {
		id, p, err = s.deps.Programs.AddExerciseByDayID(r.Context(), userID(r), day.id, e)
	} else {
		id, p, err = s.deps.Programs.AddExercise(r.Context(), userID(r), day.index, e)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{"exerciseId": id, "program": p})
}

func (s *Server) handleUpdateExercise(w http.ResponseWriter, r *http.Request) {
	var patch models.ExercisePatch
	if err := decodeBody(r, &patch); err != nil {
		writeFailure(w, http.StatusBadRequest, codeBadRequest, "invalid JSON: "+err.Error())
		return
	}

	exerciseID := chi.URLParam(r, "exerciseID")
	s.respondProgram(w, r, func(ctx context.Context, uid string, day dayRef) (*models.Program, error) {
		index, err := s.resolveDayIndex(ctx, uid, day)
		if err != nil {
			return nil, err
		}
		return s.deps.Programs.UpdateExercise(ctx, uid, index, exerciseID, patch)
	})
}

func (s *Server) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	exerciseID := chi.URLParam(r, "exerciseID")
	s.respondProgram(w, r, func(ctx context.Context, uid string, day dayRef) (*models.Program, error) {
		index, err := s.resolveDayIndex(ctx, uid, day)
		if err != nil {
			return nil, err
		}
		return s.deps.Programs.DeleteExercise(ctx, uid, index, exerciseID)
	})
}

// resolveDayIndex turns a day id into its current position. An unknown id yields -1, which the
// program service reports as a missing day.
func (s *Server) resolveDayIndex(ctx context.Context, uid string, day dayRef) (int, error) {
	if !day.byID() {
		return day.index, nil
	}
	current, err := s.deps.Programs.Get(ctx, uid)
	if err != nil {
		return 0, err
	}
	return program.DayIndex(current, day.id), nil
}

func (s *Server) respondProgram(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, uid string, day dayRef) (*models.Program, error)) {
	uid := userID(r)
	day, err := s.resolveDayRef(r.Context(), uid, chi.URLParam(r, "day"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := fn(r.Context(), uid, day)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"program": p})
}
