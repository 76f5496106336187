package program

import (
	"context"
	"fmt"

	"fitness-bot/internal/models"
)

func dayAt(p *models.Program, dayIndex int) (*models.Day, error) {
	if dayIndex < 0 || dayIndex >= len(p.Days) {
		return nil, fmt.Errorf("day %d: %w", dayIndex, ErrDayNotFound)
	}
	return &p.Days[dayIndex], nil
}

// DayIndex returns the position of the day with the given id, or -1.
func DayIndex(p *models.Program, dayID string) int {
	if p == nil {
		return -1
	}
	for i, d := range p.Days {
		if d.ID == dayID {
			return i
		}
	}
	return -1
}

func dayByID(p *models.Program, dayID string) (*models.Day, error) {
	i := DayIndex(p, dayID)
	if i < 0 {
		return nil, fmt.Errorf("day %s: %w", dayID, ErrDayNotFound)
	}
	return &p.Days[i], nil
}

func exerciseIndex(d *models.Day, exerciseID string) int {
	for i, e := range d.Exercises {
		if e.ID == exerciseID {
			return i
		}
	}
	return -1
}

func updateDay(patch models.DayPatch) func(d *models.Day) error {
	return func(d *models.Day) error {
		patch.Apply(d)
		if d.Exercises == nil {
			d.Exercises = []models.Exercise{}
		}
		return nil
	}
}

func addExercise(e models.Exercise) func(d *models.Day) error {
	return func(d *models.Day) error {
		d.Exercises = append(d.Exercises, e.Clone())
		return nil
	}
}

func updateExercise(exerciseID string, patch models.ExercisePatch) func(d *models.Day) error {
	return func(d *models.Day) error {
		i := exerciseIndex(d, exerciseID)
		if i < 0 {
			return fmt.Errorf("exercise %s: %w", exerciseID, ErrExerciseNotFound)
		}
		patch.Apply(&d.Exercises[i])
		if d.Exercises[i].Sets < 1 {
			d.Exercises[i].Sets = 1
		}
		if d.Exercises[i].Reps < 1 {
			d.Exercises[i].Reps = 1
		}
		return nil
	}
}

func deleteExercise(exerciseID string) func(d *models.Day) error {
	return func(d *models.Day) error {
		i := exerciseIndex(d, exerciseID)
		if i < 0 {
			return fmt.Errorf("exercise %s: %w", exerciseID, ErrExerciseNotFound)
		}
		d.Exercises = append(d.Exercises[:i], d.Exercises[i+1:]...)
		return nil
	}
}

func atIndex(dayIndex int, fn func(d *models.Day) error) mutation {
	return func(p *models.Program) error {
		d, err := dayAt(p, dayIndex)
		if err != nil {
			return err
		}
		return fn(d)
	}
}

func atID(dayID string, fn func(d *models.Day) error) mutation {
	return func(p *models.Program) error {
		d, err := dayByID(p, dayID)
		if err != nil {
			return err
		}
		return fn(d)
	}
}

func (s *Service) UpdateDay(ctx context.Context, userID string, dayIndex int, patch models.DayPatch) (*models.Program, error) {
	s.normalizePatch(&patch)
	return s.apply(ctx, userID, atIndex(dayIndex, updateDay(patch)))
}

func (s *Service) UpdateDayByID(ctx context.Context, userID, dayID string, patch models.DayPatch) (*models.Program, error) {
	s.normalizePatch(&patch)
	return s.apply(ctx, userID, atID(dayID, updateDay(patch)))
}

func (s *Service) DeleteDay(ctx context.Context, userID string, dayIndex int) (*models.Program, error) {
	return s.apply(ctx, userID, func(p *models.Program) error {
		if _, err := dayAt(p, dayIndex); err != nil {
			return err
		}
		p.Days = append(p.Days[:dayIndex], p.Days[dayIndex+1:]...)
		return nil
	})
}

func (s *Service) DeleteDayByID(ctx context.Context, userID, dayID string) (*models.Program, error) {
	return s.apply(ctx, userID, func(p *models.Program) error {
		i := DayIndex(p, dayID)
		if i < 0 {
			return fmt.Errorf("day %s: %w", dayID, ErrDayNotFound)
		}
		p.Days = append(p.Days[:i], p.Days[i+1:]...)
		return nil
	})
}

// AddDay appends a day at the end of the program and returns its id.
func (s *Service) AddDay(ctx context.Context, userID string, day models.Day) (string, *models.Program, error) {
	days := []models.Day{day.Clone()}
	days[0].ID = s.NewID()
	s.normalize(days)
	day = days[0]

	p, err := s.apply(ctx, userID, func(p *models.Program) error {
		p.Days = append(p.Days, day.Clone())
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return day.ID, p, nil
}

// MoveDay moves the day with the given id to position toIndex, shifting the days in between.
func (s *Service) MoveDay(ctx context.Context, userID, dayID string, toIndex int) (*models.Program, error) {
	return s.apply(ctx, userID, func(p *models.Program) error {
		from := DayIndex(p, dayID)
		if from < 0 {
			return fmt.Errorf("day %s: %w", dayID, ErrDayNotFound)
		}
		if toIndex < 0 || toIndex >= len(p.Days) {
			return fmt.Errorf("move to %d: %w", toIndex, ErrInvalidTargetSlot)
		}
		d := p.Days[from]
		p.Days = append(p.Days[:from], p.Days[from+1:]...)
		p.Days = append(p.Days[:toIndex], append([]models.Day{d}, p.Days[toIndex:]...)...)
		return nil
	})
}

// AddExercise appends an exercise to a day and returns its new id.
func (s *Service) AddExercise(ctx context.Context, userID string, dayIndex int, e models.Exercise) (string, *models.Program, error) {
	e = s.newExercise(e)
	p, err := s.apply(ctx, userID, atIndex(dayIndex, addExercise(e)))
	if err != nil {
		return "", nil, err
	}
	return e.ID, p, nil
}

func (s *Service) AddExerciseByDayID(ctx context.Context, userID, dayID string, e models.Exercise) (string, *models.Program, error) {
	e = s.newExercise(e)
	p, err := s.apply(ctx, userID, atID(dayID, addExercise(e)))
	if err != nil {
		return "", nil, err
	}
	return e.ID, p, nil
}

func (s *Service) UpdateExercise(ctx context.Context, userID string, dayIndex int, exerciseID string, patch models.ExercisePatch) (*models.Program, error) {
	return s.apply(ctx, userID, atIndex(dayIndex, updateExercise(exerciseID, patch)))
}

func (s *Service) DeleteExercise(ctx context.Context, userID string, dayIndex int, exerciseID string) (*models.Program, error) {
	return s.apply(ctx, userID, atIndex(dayIndex, deleteExercise(exerciseID)))
}

func (s *Service) newExercise(e models.Exercise) models.Exercise {
	e = e.Clone()
	e.ID = s.NewID()
	s.normalizeExercise(&e)
	return e
}

// normalizePatch gives replacement exercises ids and defaults before the patch is applied anywhere,
// so the store and the mirror see the same ids.
func (s *Service) normalizePatch(patch *models.DayPatch) {
	if patch.Exercises == nil {
		return
	}
	exercises := make([]models.Exercise, len(*patch.Exercises))
	for i, e := range *patch.Exercises {
		exercises[i] = e.Clone()
		s.normalizeExercise(&exercises[i])
	}
	patch.Exercises = &exercises
}
