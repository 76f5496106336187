package profile

import (
	"context"
	"fmt"

	"fitness-bot/internal/models"
)

const (
	ReasonPremium    = "premium"
	ReasonHasCredits = "has_credits"
	ReasonNoCredits  = "no_credits"
	ReasonNoProfile  = "no_profile"

	// Remaining reported for premium profiles, which never spend credits.
	UnlimitedRemaining = -1
)

type CreditCheck struct {
	CanUse bool   `json:"canUse"`
	Reason string `json:"reason"`
}

type CreditResult struct {
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited"`
}

func CheckCredits(p *models.Profile) CreditCheck {
	switch {
	case p == nil:
		return CreditCheck{CanUse: false, Reason: ReasonNoProfile}
	case p.IsPremium:
		return CreditCheck{CanUse: true, Reason: ReasonPremium}
	case p.Credits > 0:
		return CreditCheck{CanUse: true, Reason: ReasonHasCredits}
	default:
		return CreditCheck{CanUse: false, Reason: ReasonNoCredits}
	}
}

// UseCredit debits one credit. Premium profiles are never debited.
func (s *Service) UseCredit(ctx context.Context, id string) (*CreditResult, error) {
	var res CreditResult
	_, err := s.mutate(ctx, id, func(p *models.Profile) error {
		if p.IsPremium {
			res = CreditResult{Remaining: UnlimitedRemaining, Unlimited: true}
			return errNoChange
		}
		if p.Credits <= 0 {
			return ErrInsufficientCredits
		}
		p.Credits--
		res = CreditResult{Remaining: p.Credits}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !res.Unlimited && s.opts.Metrics != nil {
		s.opts.Metrics.CounterCreditsUsed.Inc()
	}
	return &res, nil
}

func (s *Service) GrantCredits(ctx context.Context, id string, n int) (*models.Profile, error) {
	if n <= 0 {
		return nil, fmt.Errorf("grant %d credits: %w", n, ErrInvalidAmount)
	}

	p, err := s.mutate(ctx, id, func(p *models.Profile) error {
		p.Credits += n
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Credits granted", "user_id", id, "amount", n, "credits", p.Credits)
	return p, nil
}

func (s *Service) SetPremium(ctx context.Context, id string, premium bool) (*models.Profile, error) {
	p, err := s.mutate(ctx, id, func(p *models.Profile) error {
		if p.IsPremium == premium {
			return errNoChange
		}
		p.IsPremium = premium
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Premium updated", "user_id", id, "premium", premium)
	return p, nil
}
