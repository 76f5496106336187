package program

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"fitness-bot/internal/cache"
	"fitness-bot/internal/docstore"
	"fitness-bot/internal/models"
	"fitness-bot/pkg/logger"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *docstore.MemoryStore, *cache.MirrorTestCache) {
	t.Helper()
	store := docstore.NewMemoryStore()
	mirror := cache.NewMirrorTestCache()
	svc := NewService(store, mirror, logger.NewNop())

	var seq atomic.Int64
	svc.NewID = func() string {
		return fmt.Sprintf("id-%d", seq.Add(1))
	}
	svc.Now = func() time.Time {
		return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	}
	return svc, store, mirror
}

func testDays() []models.Day {
	return []models.Day{
		{
			ID:    "d1",
			Label: "Mon",
			Title: "Chest",
			Exercises: []models.Exercise{
				{ID: "e1", Name: "Bench Press", Sets: 4, Reps: 10, Note: "slow", Muscles: []string{"chest"}, Gym: "-"},
				{ID: "e2", Name: "Push Up", Sets: 3, Reps: 15, Gym: "home"},
			},
		},
		{ID: "d2", Label: "Tue", Title: "Rest", IsRestDay: true, Exercises: []models.Exercise{}},
		{
			ID:    "d3",
			Label: "Wed",
			Title: "Legs",
			Exercises: []models.Exercise{
				{ID: "e3", Name: "Squat", Sets: 5, Reps: 5, Gym: "-"},
			},
		},
	}
}

func saveTestProgram(t *testing.T, svc *Service, userID string) {
	t.Helper()
	_, err := svc.Save(context.Background(), userID, testDays())
	require.NoError(t, err)
}

func assertMirrorMatchesStore(t *testing.T, svc *Service, userID string) {
	t.Helper()
	mirrored, ok := svc.Mirror(userID)
	require.True(t, ok, "no mirror")
	stored, err := svc.load(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, stored.Days, mirrored.Days)
}

func TestService_SaveGetRoundTrip(t *testing.T) {
	svc, _, mirror := newTestService(t)
	ctx := context.Background()
	uid := gofakeit.UUID()

	days := testDays()
	saved, err := svc.Save(ctx, uid, days)
	require.NoError(t, err)
	assert.Equal(t, days, saved.Days)

	mirror.Clear()
	got, err := svc.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, days, got.Days)

	// Get refreshes the mirror
	mirrored, ok := svc.Mirror(uid)
	require.True(t, ok)
	assert.Equal(t, days, mirrored.Days)
}

func TestService_SaveNormalizes(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Save(ctx, "u1", []models.Day{
		{Label: "Mon", Exercises: []models.Exercise{{Name: "Row"}}},
		{Label: "Tue", IsRestDay: true},
	})
	require.NoError(t, err)
	require.Len(t, p.Days, 2)
	assert.NotEmpty(t, p.Days[0].ID)
	e := p.Days[0].Exercises[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, 1, e.Sets)
	assert.Equal(t, 1, e.Reps)
	assert.Equal(t, models.DefaultGym, e.Gym)
	assert.NotNil(t, p.Days[1].Exercises)
}

func TestService_Get_NotFound(t *testing.T) {
	svc, _, mirror := newTestService(t)
	mirror.Set("u1", &models.Program{}, 1)

	_, err := svc.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, ok := svc.Mirror("u1")
	assert.False(t, ok)
}

func TestService_StoresUnderActiveKey(t *testing.T) {
	svc, store, _ := newTestService(t)
	saveTestProgram(t, svc, "u1")

	doc, err := store.Get(context.Background(), "users/u1/programs", "active")
	require.NoError(t, err)
	var p models.Program
	require.NoError(t, doc.Decode(&p))
	assert.Len(t, p.Days, 3)
}

func TestService_Delete(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	saveTestProgram(t, svc, "u1")

	require.NoError(t, svc.Delete(ctx, "u1"))
	_, err := svc.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, ok := svc.Mirror("u1")
	assert.False(t, ok)

	// deleting again is fine
	require.NoError(t, svc.Delete(ctx, "u1"))
}

func TestService_MutationsWithoutProgram(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdateDay(ctx, "u1", 0, models.DayPatch{})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.DeleteDay(ctx, "u1", 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = svc.AddExercise(ctx, "u1", 0, models.Exercise{Name: "Row"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.UpdateExercise(ctx, "u1", 0, "e1", models.ExercisePatch{})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.DeleteExercise(ctx, "u1", 0, "e1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.MoveDay(ctx, "u1", "d1", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_WriteFailureLeavesMirror(t *testing.T) {
	store := &failingStore{MemoryStore: docstore.NewMemoryStore()}
	svc := NewService(store, cache.NewMirrorTestCache(), logger.NewNop())
	ctx := context.Background()
	saveTestProgram(t, svc, "u1")

	store.failSets = true
	title := "Changed"
	_, err := svc.UpdateDay(ctx, "u1", 0, models.DayPatch{Title: &title})
	assert.ErrorIs(t, err, docstore.ErrRemoteWrite)

	mirrored, ok := svc.Mirror("u1")
	require.True(t, ok)
	assert.Equal(t, "Chest", mirrored.Days[0].Title)
}

type failingStore struct {
	*docstore.MemoryStore
	failSets bool
}

func (s *failingStore) Set(ctx context.Context, collection, key string, value any) (*docstore.Document, error) {
	if s.failSets {
		return nil, errors.Join(docstore.ErrRemoteWrite, errors.New("unavailable"))
	}
	return s.MemoryStore.Set(ctx, collection, key, value)
}

func newMirrorFor(t *testing.T) *cache.MirrorTestCache {
	t.Helper()
	return cache.NewMirrorTestCache()
}
