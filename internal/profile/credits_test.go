package profile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fitness-bot/internal/docstore"
	"fitness-bot/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCredits(t *testing.T) {
	tests := []struct {
		name    string
		profile *models.Profile
		want    CreditCheck
	}{
		{name: "nil profile", profile: nil, want: CreditCheck{CanUse: false, Reason: ReasonNoProfile}},
		{name: "premium without credits", profile: &models.Profile{IsPremium: true}, want: CreditCheck{CanUse: true, Reason: ReasonPremium}},
		{name: "has credits", profile: &models.Profile{Credits: 1}, want: CreditCheck{CanUse: true, Reason: ReasonHasCredits}},
		{name: "no credits", profile: &models.Profile{Credits: 0}, want: CreditCheck{CanUse: false, Reason: ReasonNoCredits}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckCredits(tt.profile))
		})
	}
}

func TestService_UseCredit(t *testing.T) {
	svc, store, _, m := newTestService(t)
	ctx := context.Background()

	_, err := store.Set(ctx, collection, "u1", models.Profile{ID: "u1", Level: 1, Credits: 1})
	require.NoError(t, err)

	r, err := svc.UseCredit(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, r.Remaining)
	assert.False(t, r.Unlimited)

	got, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Credits)

	_, err = svc.UseCredit(ctx, "u1")
	assert.ErrorIs(t, err, ErrInsufficientCredits)
	_, err = svc.UseCredit(ctx, "u1")
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	_, err = svc.UseCredit(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CounterCreditsUsed))
}

func TestService_UseCredit_Premium(t *testing.T) {
	svc, store, _, m := newTestService(t)
	ctx := context.Background()

	_, err := store.Set(ctx, collection, "vip", models.Profile{ID: "vip", Level: 1, Credits: 2, IsPremium: true})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		r, err := svc.UseCredit(ctx, "vip")
		require.NoError(t, err)
		assert.Equal(t, UnlimitedRemaining, r.Remaining)
		assert.True(t, r.Unlimited)
	}

	got, err := svc.Get(ctx, "vip")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Credits)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.CounterCreditsUsed))
}

func TestService_UseCredit_ConcurrentLastCredit(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := store.Set(ctx, collection, "u1", models.Profile{ID: "u1", Level: 1, Credits: 1})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UseCredit(ctx, "u1")
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrInsufficientCredits) && !errors.Is(err, docstore.ErrVersionConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	got, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Credits)
}

func TestService_GrantCredits(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	p := createTestProfile(t, svc)

	got, err := svc.GrantCredits(ctx, p.ID, 15)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCredits+15, got.Credits)

	_, err = svc.GrantCredits(ctx, p.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestService_SetPremium(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	p := createTestProfile(t, svc)

	got, err := svc.SetPremium(ctx, p.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsPremium)
	assert.True(t, CheckCredits(got).CanUse)

	got, err = svc.SetPremium(ctx, p.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsPremium)
}
