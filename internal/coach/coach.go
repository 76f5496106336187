// Package coach runs AI program generation end to end: credit gate, generation, ingestion, save, debit.
package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fitness-bot/internal/gpt"
	"fitness-bot/internal/ingest"
	"fitness-bot/internal/metrics"
	"fitness-bot/internal/models"
	"fitness-bot/internal/profile"
	"fitness-bot/internal/program"
	"fitness-bot/pkg/logger"
)

type Profiles interface {
	Get(ctx context.Context, id string) (*models.Profile, error)
	UseCredit(ctx context.Context, id string) (*profile.CreditResult, error)
}

type Programs interface {
	Get(ctx context.Context, userID string) (*models.Program, error)
	Save(ctx context.Context, userID string, days []models.Day) (*models.Program, error)
}

type Service struct {
	profiles  Profiles
	programs  Programs
	generator gpt.Generator
	ingester  *ingest.Ingester
	logger    *logger.Logger
	metrics   *metrics.Manager
}

func NewService(profiles Profiles, programs Programs, generator gpt.Generator, logger *logger.Logger, m *metrics.Manager) *Service {
	return &Service{
		profiles:  profiles,
		programs:  programs,
		generator: generator,
		ingester:  ingest.New(),
		logger:    logger,
		metrics:   m,
	}
}

// WithIngester swaps the ingester, e.g. for deterministic ids.
func (s *Service) WithIngester(in *ingest.Ingester) *Service {
	s.ingester = in
	return s
}

type Result struct {
	Program *models.Program `json:"program"`
	// Credits is nil when the debit after a successful save failed.
	Credits *profile.CreditResult `json:"credits,omitempty"`
	Created bool                  `json:"created"`
}

// Ask returns a free-form coach reply. Chat does not spend credits.
func (s *Service) Ask(ctx context.Context, uid, message, locale string) (string, error) {
	p, err := s.profiles.Get(ctx, uid)
	if err != nil {
		return "", err
	}
	return s.generate(ctx, message, locale, p)
}

func (s *Service) GenerateProgram(ctx context.Context, uid, request, locale string) (*Result, error) {
	return s.run(ctx, uid, locale, func() (string, bool, error) {
		return gpt.ProgramPrompt(request, locale), true, nil
	})
}

// ReviseProgram asks for a changed version of the current program. Without one it behaves like
// GenerateProgram.
func (s *Service) ReviseProgram(ctx context.Context, uid, request, locale string) (*Result, error) {
	return s.run(ctx, uid, locale, func() (string, bool, error) {
		current, err := s.programs.Get(ctx, uid)
		if errors.Is(err, program.ErrNotFound) {
			return gpt.ProgramPrompt(request, locale), true, nil
		}
		if err != nil {
			return "", false, err
		}
		b, err := json.Marshal(current.Days)
		if err != nil {
			return "", false, fmt.Errorf("encode current program: %w", err)
		}
		return gpt.RevisePrompt(request, string(b), locale), false, nil
	})
}

func (s *Service) run(ctx context.Context, uid, locale string, prompt func() (string, bool, error)) (*Result, error) {
	p, err := s.profiles.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if check := profile.CheckCredits(p); !check.CanUse {
		s.countGeneration("no_credits")
		return nil, fmt.Errorf("generate program for %s: %w", uid, profile.ErrInsufficientCredits)
	}

	text, created, err := prompt()
	if err != nil {
		return nil, err
	}

	reply, err := s.generate(ctx, text, locale, p)
	if err != nil {
		s.countGeneration("error")
		return nil, err
	}

	days, err := s.ingester.Parse(reply, locale)
	if err != nil {
		s.countGeneration(outcome(err))
		s.logger.Warnw("AI reply rejected", "user_id", uid, "error", err, "reply_len", len(reply))
		return nil, err
	}

	saved, err := s.programs.Save(ctx, uid, days)
	if err != nil {
		s.countGeneration("error")
		return nil, err
	}

	res := &Result{Program: saved, Created: created}
	credits, err := s.profiles.UseCredit(ctx, uid)
	if err != nil {
		// the program is already saved; a lost debit is logged, not surfaced
		s.logger.Errorw("Failed to debit credit after program save", "user_id", uid, "error", err)
	} else {
		res.Credits = credits
	}

	s.countGeneration("ok")
	s.logger.Infow("Program generated", "user_id", uid, "days", len(saved.Days), "created", created)
	return res, nil
}

func (s *Service) generate(ctx context.Context, prompt, locale string, p *models.Profile) (string, error) {
	start := time.Now()
	text, err := s.generator.Generate(ctx, prompt, locale, gpt.GenerateContext{
		Level:      p.Level,
		ActiveDays: p.ActiveDays,
	})
	if s.metrics != nil {
		s.metrics.HistGenerationDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return "", fmt.Errorf("generate text: %w", err)
	}
	return text, nil
}

func (s *Service) countGeneration(outcome string) {
	if s.metrics != nil {
		s.metrics.CounterGenerations.WithLabelValues(outcome).Inc()
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ingest.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ingest.ErrEmptyProgram):
		return "empty"
	default:
		return "error"
	}
}
