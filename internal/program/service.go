// Package program owns a user's active workout program: ordered days holding ordered exercises.
//
// Every mutation reads the program, changes a copy and writes the whole document back. Two writers racing on
// the same program resolve as last writer wins. After a successful write the same change is applied to the
// local mirror, which stays provisional until the next read.
package program

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fitness-bot/internal/cache"
	"fitness-bot/internal/docstore"
	"fitness-bot/internal/models"
	"fitness-bot/pkg/logger"
)

const activeKey = "active"

var (
	ErrNotFound          = errors.New("program not found")
	ErrDayNotFound       = errors.New("day not found")
	ErrExerciseNotFound  = errors.New("exercise not found")
	ErrInvalidTargetSlot = errors.New("invalid target position")
)

// Collection is the per-user document collection holding the active program.
func Collection(userID string) string {
	return "users/" + userID + "/programs"
}

type Service struct {
	store  docstore.Store
	mirror cache.Cache
	logger *logger.Logger

	// ability to inject id generation and clock (for tests)
	NewID func() string
	Now   func() time.Time
}

func NewService(store docstore.Store, mirror cache.Cache, logger *logger.Logger) *Service {
	return &Service{
		store:  store,
		mirror: mirror,
		logger: logger,
		NewID:  models.NewID,
		Now:    time.Now,
	}
}

// Get returns the active program, or ErrNotFound. A successful read replaces the mirror.
func (s *Service) Get(ctx context.Context, userID string) (*models.Program, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.mirror.Del(userID)
		}
		return nil, err
	}
	s.setMirror(userID, p)
	return p, nil
}

func (s *Service) load(ctx context.Context, userID string) (*models.Program, error) {
	doc, err := s.store.Get(ctx, Collection(userID), activeKey)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get program %s: %w", userID, err)
	}

	var p models.Program
	if err := doc.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Save replaces the whole program in one write.
func (s *Service) Save(ctx context.Context, userID string, days []models.Day) (*models.Program, error) {
	now := s.Now().UTC()
	p := &models.Program{
		Days:      models.CloneDays(days),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.Days == nil {
		p.Days = []models.Day{}
	}
	s.normalize(p.Days)

	if _, err := s.store.Set(ctx, Collection(userID), activeKey, p); err != nil {
		return nil, fmt.Errorf("save program %s: %w", userID, err)
	}

	s.setMirror(userID, p)
	s.logger.Infow("Program saved", "user_id", userID, "days", len(p.Days))
	return p.Clone(), nil
}

func (s *Service) Delete(ctx context.Context, userID string) error {
	if err := s.store.Delete(ctx, Collection(userID), activeKey); err != nil {
		return fmt.Errorf("delete program %s: %w", userID, err)
	}
	s.mirror.Del(userID)
	s.logger.Infow("Program deleted", "user_id", userID)
	return nil
}

// Mirror returns the locally cached program, if any. It reflects this process's own writes.
func (s *Service) Mirror(userID string) (*models.Program, bool) {
	v, ok := s.mirror.Get(userID)
	if !ok {
		return nil, false
	}
	p, ok := v.(*models.Program)
	if !ok || p == nil {
		return nil, false
	}
	return p.Clone(), true
}

func (s *Service) setMirror(userID string, p *models.Program) {
	s.mirror.Set(userID, p.Clone(), 1)
}

// mutation changes the program in place.
type mutation func(p *models.Program) error

// apply reads, mutates, writes back and replays the same mutation onto the mirror.
func (s *Service) apply(ctx context.Context, userID string, m mutation) (*models.Program, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := m(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.Now().UTC()

	if _, err := s.store.Set(ctx, Collection(userID), activeKey, p); err != nil {
		return nil, fmt.Errorf("write program %s: %w", userID, err)
	}

	s.replay(userID, p, m)
	return p.Clone(), nil
}

func (s *Service) replay(userID string, written *models.Program, m mutation) {
	mirrored, ok := s.Mirror(userID)
	if !ok {
		s.setMirror(userID, written)
		return
	}
	if err := m(mirrored); err != nil {
		// the mirror drifted from the store; fall back to what was written
		s.logger.Debugw("Mirror out of sync, replacing", "user_id", userID, "error", err)
		s.setMirror(userID, written)
		return
	}
	mirrored.UpdatedAt = written.UpdatedAt
	s.setMirror(userID, mirrored)
}

func (s *Service) normalize(days []models.Day) {
	for i := range days {
		if days[i].ID == "" {
			days[i].ID = s.NewID()
		}
		if days[i].Exercises == nil {
			days[i].Exercises = []models.Exercise{}
		}
		for j := range days[i].Exercises {
			s.normalizeExercise(&days[i].Exercises[j])
		}
	}
}

func (s *Service) normalizeExercise(e *models.Exercise) {
	if e.ID == "" {
		e.ID = s.NewID()
	}
	if e.Sets < 1 {
		e.Sets = 1
	}
	if e.Reps < 1 {
		e.Reps = 1
	}
	if strings.TrimSpace(e.Gym) == "" {
		e.Gym = models.DefaultGym
	}
}
