package profile

import (
	"context"
	"sync"
	"testing"
	"time"

	"fitness-bot/internal/docstore"
	"fitness-bot/internal/metrics"
	"fitness-bot/internal/models"
	"fitness-bot/pkg/logger"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminEmail = "coach@fitness.example"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (*Service, *docstore.MemoryStore, *testClock, *metrics.Manager) {
	t.Helper()
	store := docstore.NewMemoryStore()
	clock := &testClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
	m := metrics.NewTestManager()
	svc := NewService(store, logger.NewNop(), Options{
		AdminEmail:     testAdminEmail,
		InitialCredits: models.DefaultCredits,
		Now:            clock.Now,
		Metrics:        m,
	})
	return svc, store, clock, m
}

func createTestProfile(t *testing.T, svc *Service) *models.Profile {
	t.Helper()
	p, err := svc.Create(context.Background(), gofakeit.UUID(), models.NewProfile{
		DisplayName: gofakeit.Name(),
		Email:       gofakeit.Email(),
	})
	require.NoError(t, err)
	return p
}

func TestService_Create(t *testing.T) {
	svc, _, clock, _ := newTestService(t)
	ctx := context.Background()

	name := gofakeit.Name()
	p, err := svc.Create(ctx, "u1", models.NewProfile{DisplayName: name, Email: gofakeit.Email()})
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, name, p.DisplayName)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, 0, p.XP)
	assert.Equal(t, 0, p.TotalXP)
	assert.Equal(t, models.DefaultCredits, p.Credits)
	assert.False(t, p.IsPremium)
	assert.Empty(t, p.CompletedSets)
	assert.Nil(t, p.LastActiveDate)
	assert.Equal(t, clock.Now(), p.CreatedAt)

	got, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, p.Email, got.Email)
	assert.Equal(t, models.DefaultCredits, got.Credits)

	_, err = svc.Create(ctx, "u1", models.NewProfile{Email: gofakeit.Email()})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestService_Create_DefaultsDisplayName(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	p, err := svc.Create(context.Background(), "u1", models.NewProfile{DisplayName: "   "})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDisplayName, p.DisplayName)
}

func TestService_Create_Admin(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	p, err := svc.Create(context.Background(), "admin", models.NewProfile{Email: "Coach@Fitness.example"})
	require.NoError(t, err)
	assert.True(t, p.IsPremium)
	assert.Equal(t, models.UnlimitedCredits, p.Credits)
}

func TestService_Get_NotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Get_HealsAdmin(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := store.Set(ctx, collection, "admin", models.Profile{
		ID:      "admin",
		Email:   testAdminEmail,
		Level:   2,
		Credits: 12,
	})
	require.NoError(t, err)

	p, err := svc.Get(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, p.IsPremium)
	assert.Equal(t, models.UnlimitedCredits, p.Credits)
	assert.Equal(t, 2, p.Level)

	// the repair is persisted
	doc, err := store.Get(ctx, collection, "admin")
	require.NoError(t, err)
	var stored models.Profile
	require.NoError(t, doc.Decode(&stored))
	assert.True(t, stored.IsPremium)
	assert.Equal(t, models.UnlimitedCredits, stored.Credits)

	// healthy admin profiles are not rewritten
	p, err = svc.Get(ctx, "admin")
	require.NoError(t, err)
	again, err := store.Get(ctx, collection, "admin")
	require.NoError(t, err)
	assert.Equal(t, doc.Version, again.Version)
	assert.Equal(t, models.UnlimitedCredits, p.Credits)
}

func TestService_Get_DoesNotHealRegularUsers(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	p := createTestProfile(t, svc)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPremium)
	assert.Equal(t, models.DefaultCredits, got.Credits)
}

func TestService_UpdateProfile(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	p := createTestProfile(t, svc)

	name := "New Name"
	photo := "https://cdn.example/p.png"
	got, err := svc.UpdateProfile(ctx, p.ID, models.ProfilePatch{DisplayName: &name, PhotoURL: &photo})
	require.NoError(t, err)
	assert.Equal(t, name, got.DisplayName)
	assert.Equal(t, photo, got.PhotoURL)
	assert.Equal(t, p.Email, got.Email)

	_, err = svc.UpdateProfile(ctx, "nobody", models.ProfilePatch{DisplayName: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Subscribe(t *testing.T) {
	svc, _, _, m := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	p := createTestProfile(t, svc)

	updates, err := svc.Subscribe(ctx, p.ID)
	require.NoError(t, err)

	first := receiveUpdate(t, updates)
	require.NoError(t, first.Err)
	require.NotNil(t, first.Profile)
	assert.Equal(t, 0, first.Profile.TotalXP)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GaugeSubscriptions))

	_, err = svc.AddXP(ctx, p.ID, 1200)
	require.NoError(t, err)

	next := receiveUpdate(t, updates)
	require.NoError(t, next.Err)
	assert.Equal(t, 2, next.Profile.Level)
	assert.Equal(t, 200, next.Profile.XP)
	assert.Equal(t, 1200, next.Profile.TotalXP)

	cancel()
	for range updates {
	}
	assert.Equal(t, float64(0), testutil.ToFloat64(m.GaugeSubscriptions))
}

func TestService_Subscribe_Deleted(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := createTestProfile(t, svc)

	updates, err := svc.Subscribe(ctx, p.ID)
	require.NoError(t, err)
	receiveUpdate(t, updates)

	require.NoError(t, store.Delete(ctx, collection, p.ID))
	u := receiveUpdate(t, updates)
	assert.NoError(t, u.Err)
	assert.Nil(t, u.Profile)
}

func receiveUpdate(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		require.True(t, ok, "updates closed")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for profile update")
	}
	return Update{}
}
