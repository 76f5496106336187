package profile

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"fitness-bot/internal/models"
)

type XPResult struct {
	XP           int  `json:"xp"`
	Level        int  `json:"level"`
	TotalXP      int  `json:"totalXp"`
	XPGained     int  `json:"xpGained"`
	LeveledUp    bool `json:"leveledUp"`
	LevelsGained int  `json:"levelsGained"`
}

type CompleteSetResult struct {
	Key              string `json:"key"`
	AlreadyCompleted bool   `json:"alreadyCompleted"`
	XPResult
}

type ActiveDaysResult struct {
	ActiveDays  int  `json:"activeDays"`
	Incremented bool `json:"incremented"`
}

// MaxXPGrant is the largest amount a single AddXP call accepts.
const MaxXPGrant = 1_000_000

// ApplyXP adds amount to xp and rolls every full xpPerLevel into a level. TotalXP is left to the caller.
// xp is expected in [0, xpPerLevel) and amount to be non-negative; the sum never overflows.
func ApplyXP(xp, level, amount, xpPerLevel int) XPResult {
	if xpPerLevel <= 0 {
		xpPerLevel = models.XPPerLevel
	}
	if level < 1 {
		level = 1
	}
	if amount < 0 {
		amount = 0
	}
	if xp < 0 {
		xp = 0
	}
	carried := xp/xpPerLevel + amount/xpPerLevel
	rest := xp%xpPerLevel + amount%xpPerLevel

	r := XPResult{
		XP:           rest % xpPerLevel,
		Level:        level,
		XPGained:     amount,
		LevelsGained: carried + rest/xpPerLevel,
	}
	r.Level += r.LevelsGained
	r.LeveledUp = r.LevelsGained > 0
	return r
}

// XPPerLevel is the experience needed for one level.
func (s *Service) XPPerLevel() int {
	return s.opts.XPPerLevel
}

func (s *Service) applyXP(p *models.Profile, amount int) XPResult {
	r := ApplyXP(p.XP, p.Level, amount, s.opts.XPPerLevel)
	p.XP = r.XP
	p.Level = r.Level
	p.TotalXP += amount
	r.TotalXP = p.TotalXP
	return r
}

func (s *Service) recordXP(r XPResult) {
	if s.opts.Metrics == nil {
		return
	}
	s.opts.Metrics.CounterXPGranted.Add(float64(r.XPGained))
	s.opts.Metrics.CounterLevelUps.Add(float64(r.LevelsGained))
}

func (s *Service) AddXP(ctx context.Context, id string, amount int) (*XPResult, error) {
	if amount < 0 || amount > MaxXPGrant {
		return nil, fmt.Errorf("add %d xp: %w", amount, ErrInvalidAmount)
	}

	var r XPResult
	_, err := s.mutate(ctx, id, func(p *models.Profile) error {
		if p.TotalXP > math.MaxInt-amount {
			return fmt.Errorf("add %d xp to %d: %w", amount, p.TotalXP, ErrInvalidAmount)
		}
		r = s.applyXP(p, amount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordXP(r)
	if r.LeveledUp {
		s.logger.Infow("Level up", "user_id", id, "level", r.Level, "levels_gained", r.LevelsGained)
	}
	return &r, nil
}

// CompleteSet marks one set done and grants the per-set XP in the same write. Completing a set that was
// already recorded is a successful no-op.
func (s *Service) CompleteSet(ctx context.Context, id, exerciseID string, setIndex int) (*CompleteSetResult, error) {
	exerciseID = strings.TrimSpace(exerciseID)
	if exerciseID == "" || setIndex < 0 {
		return nil, fmt.Errorf("exercise %q set %d: %w", exerciseID, setIndex, ErrInvalidSet)
	}

	key := models.SetKey(exerciseID, setIndex)
	var res CompleteSetResult
	_, err := s.mutate(ctx, id, func(p *models.Profile) error {
		res = CompleteSetResult{Key: key}
		if p.HasCompleted(key) {
			res.AlreadyCompleted = true
			res.XP, res.Level, res.TotalXP = p.XP, p.Level, p.TotalXP
			return errNoChange
		}
		p.CompletedSets = append(p.CompletedSets, key)
		res.XPResult = s.applyXP(p, s.opts.XPPerSet)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !res.AlreadyCompleted {
		if s.opts.Metrics != nil {
			s.opts.Metrics.CounterSetsCompleted.Inc()
		}
		s.recordXP(res.XPResult)
	}
	return &res, nil
}

// ResetCompletedSets forgets every completed set so the next training cycle earns XP again.
func (s *Service) ResetCompletedSets(ctx context.Context, id string) (*models.Profile, error) {
	return s.mutate(ctx, id, func(p *models.Profile) error {
		if len(p.CompletedSets) == 0 {
			return errNoChange
		}
		p.CompletedSets = []string{}
		return nil
	})
}

// UpdateActiveDays counts today at most once. Days are calendar days in the configured location.
func (s *Service) UpdateActiveDays(ctx context.Context, id string) (*ActiveDaysResult, error) {
	var res ActiveDaysResult
	_, err := s.mutate(ctx, id, func(p *models.Profile) error {
		now := s.opts.Now()
		res = ActiveDaysResult{ActiveDays: p.ActiveDays}
		if p.LastActiveDate != nil && sameDay(*p.LastActiveDate, now, s.opts.Location) {
			return errNoChange
		}
		today := now.UTC()
		p.ActiveDays++
		p.LastActiveDate = &today
		res.ActiveDays = p.ActiveDays
		res.Incremented = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
