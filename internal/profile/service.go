// Package profile owns a user's progression: level, experience, active-day streak and the credit/premium
// entitlement that gates AI generation. The document store is the source of truth; every mutation is a
// conditional write against the version that was read.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fitness-bot/internal/docstore"
	"fitness-bot/internal/metrics"
	"fitness-bot/internal/models"
	"fitness-bot/pkg/logger"
)

const (
	collection = "users"
	// conditional write attempts before a conflict is reported to the caller
	maxCASAttempts = 3
)

var (
	ErrNotFound            = errors.New("profile not found")
	ErrAlreadyExists       = errors.New("profile already exists")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidSet          = errors.New("invalid set reference")

	errNoChange = errors.New("no change")
)

type Options struct {
	AdminEmail     string
	XPPerSet       int
	XPPerLevel     int
	InitialCredits int
	// calendar days for the active-day streak are counted in this location
	Location *time.Location
	Now      func() time.Time
	Metrics  *metrics.Manager
}

type Service struct {
	store  docstore.Store
	logger *logger.Logger
	opts   Options
}

func NewService(store docstore.Store, logger *logger.Logger, opts Options) *Service {
	if opts.XPPerSet <= 0 {
		opts.XPPerSet = models.XPPerSet
	}
	if opts.XPPerLevel <= 0 {
		opts.XPPerLevel = models.XPPerLevel
	}
	if opts.InitialCredits <= 0 {
		opts.InitialCredits = models.DefaultCredits
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		store:  store,
		logger: logger,
		opts:   opts,
	}
}

type Update struct {
	// Profile is nil when the profile document was deleted.
	Profile *models.Profile
	Err     error
}

func (s *Service) isAdmin(email string) bool {
	return s.opts.AdminEmail != "" && strings.EqualFold(strings.TrimSpace(email), s.opts.AdminEmail)
}

func (s *Service) Create(ctx context.Context, id string, np models.NewProfile) (*models.Profile, error) {
	if id == "" {
		return nil, fmt.Errorf("create profile: empty id")
	}

	now := s.opts.Now().UTC()
	p := &models.Profile{
		ID:            id,
		DisplayName:   strings.TrimSpace(np.DisplayName),
		Email:         strings.TrimSpace(np.Email),
		PhotoURL:      np.PhotoURL,
		Level:         1,
		CompletedSets: []string{},
		Credits:       s.opts.InitialCredits,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if p.DisplayName == "" {
		p.DisplayName = models.DefaultDisplayName
	}
	if s.isAdmin(p.Email) {
		p.Credits = models.UnlimitedCredits
		p.IsPremium = true
	}

	_, err := s.store.SetIfVersion(ctx, collection, id, p, 0)
	if errors.Is(err, docstore.ErrVersionConflict) {
		return nil, ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("create profile %s: %w", id, err)
	}

	s.logger.Infow("Profile created", "user_id", id, "credits", p.Credits, "premium", p.IsPremium)
	return p, nil
}

// Get returns the profile. An admin profile found without its entitlement is repaired on the way out.
func (s *Service) Get(ctx context.Context, id string) (*models.Profile, error) {
	p, _, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.isAdmin(p.Email) && (!p.IsPremium || p.Credits < models.AdminCreditFloor) {
		now := s.opts.Now().UTC()
		_, err := s.store.Update(ctx, collection, id, map[string]any{
			"credits":   models.UnlimitedCredits,
			"isPremium": true,
			"updatedAt": now,
		})
		if err != nil {
			return nil, fmt.Errorf("heal admin profile %s: %w", id, err)
		}
		p.Credits = models.UnlimitedCredits
		p.IsPremium = true
		p.UpdatedAt = now
		s.logger.Infow("Admin entitlement restored", "user_id", id)
	}

	return p, nil
}

func (s *Service) load(ctx context.Context, id string) (*models.Profile, int64, error) {
	doc, err := s.store.Get(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get profile %s: %w", id, err)
	}

	var p models.Profile
	if err := doc.Decode(&p); err != nil {
		return nil, 0, err
	}
	return &p, doc.Version, nil
}

// Subscribe streams the full profile on every change until ctx is done. Repeated identical
// snapshots are possible, including ones caused by this process's own writes.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan Update, error) {
	snapshots, err := s.store.Subscribe(ctx, collection, id)
	if err != nil {
		return nil, fmt.Errorf("subscribe profile %s: %w", id, err)
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.GaugeSubscriptions.Inc()
	}

	out := make(chan Update)
	go func() {
		defer close(out)
		defer func() {
			if s.opts.Metrics != nil {
				s.opts.Metrics.GaugeSubscriptions.Dec()
			}
		}()

		for snap := range snapshots {
			u := Update{Err: snap.Err}
			if snap.Err == nil && snap.Doc != nil {
				var p models.Profile
				if err := snap.Doc.Decode(&p); err != nil {
					u.Err = err
				} else {
					u.Profile = &p
				}
			}

			select {
			case out <- u:
			case <-ctx.Done():
				// drain so the store side can shut down
				for range snapshots {
				}
				return
			}
		}
	}()

	return out, nil
}

// mutate runs read, fn, conditional write. A lost race re-runs fn against the fresh profile. fn returning
// errNoChange skips the write and hands back the profile as read.
func (s *Service) mutate(ctx context.Context, id string, fn func(p *models.Profile) error) (*models.Profile, error) {
	var lastErr error
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		p, version, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := fn(p); err != nil {
			if errors.Is(err, errNoChange) {
				return p, nil
			}
			return nil, err
		}
		p.UpdatedAt = s.opts.Now().UTC()

		_, err = s.store.SetIfVersion(ctx, collection, id, p, version)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, docstore.ErrVersionConflict) {
			return nil, fmt.Errorf("write profile %s: %w", id, err)
		}

		lastErr = err
		if s.opts.Metrics != nil {
			s.opts.Metrics.CounterCASConflicts.Inc()
		}
		s.logger.Debugw("Profile write conflict, re-evaluating", "user_id", id, "attempt", attempt+1)
	}
	return nil, fmt.Errorf("write profile %s: %d attempts: %w", id, maxCASAttempts, lastErr)
}

func (s *Service) UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (*models.Profile, error) {
	return s.mutate(ctx, id, func(p *models.Profile) error {
		if patch.DisplayName == nil && patch.PhotoURL == nil {
			return errNoChange
		}
		if patch.DisplayName != nil {
			name := strings.TrimSpace(*patch.DisplayName)
			if name == "" {
				name = models.DefaultDisplayName
			}
			p.DisplayName = name
		}
		if patch.PhotoURL != nil {
			p.PhotoURL = *patch.PhotoURL
		}
		return nil
	})
}
