package program

import (
	"context"
	"testing"

	"fitness-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dayIDs(p *models.Program) []string {
	ids := make([]string, len(p.Days))
	for i, d := range p.Days {
		ids[i] = d.ID
	}
	return ids
}

func TestService_UpdateDay(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	saveTestProgram(t, svc, "u1")

	title := "Upper Body"
	rest := false
	p, err := svc.UpdateDay(ctx, "u1", 0, models.DayPatch{Title: &title, IsRestDay: &rest})
	require.NoError(t, err)
	assert.Equal(t, "Upper Body", p.Days[0].Title)
	assert.Equal(t, "Mon", p.Days[0].Label)
	assert.Len(t, p.Days[0].Exercises, 2)
	assertMirrorMatchesStore(t, svc, "u1")

	_, err = svc.UpdateDay(ctx, "u1", 3, models.DayPatch{Title: &title})
	assert.ErrorIs(t, err, ErrDayNotFound)
	_, err = svc.UpdateDay(ctx, "u1", -1, models.DayPatch{Title: &title})
	assert.ErrorIs(t, err, ErrDayNotFound)
}

func TestService_UpdateDay_ReplacesExercises(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	saveTestProgram(t, svc, "u1")

	exercises := []models.Exercise{{Name: "Deadlift", Sets: 3, Reps: 5}}
	p, err := svc.UpdateDayByID(ctx, "u1", "d3", models.DayPatch{Exercises: &exercises})
	require.NoError(t, err)
	require.Len(t, p.Days[2].Exercises, 1)
	assert.Equal(t, "Deadlift", p.Days[2].Exercises[0].Name)
	assert.NotEmpty(t, p.Days[2].Exercises[0].ID)
	assert.Equal(t, models.DefaultGym, p.Days[2].Exercises[0].Gym)
	assertMirrorMatchesStore(t, svc, "u1")

	_, err = svc.UpdateDayByID(ctx, "u1", "nope", models.DayPatch{Exercises: &exercises})
	assert.ErrorIs(t, err, ErrDayNotFound)
}

func TestService_DeleteDay(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	saveTestProgram(t, svc, "u1")

	p, err := svc.DeleteDay(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d3"}, dayIDs(p))
	assertMirrorMatchesStore(t, svc, "u1")

	p, err = svc.DeleteDayByID(ctx, "u1", "d3")
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, dayIDs(p))
	assertMirrorMatchesStore(t, svc, "u1")

	_, err = svc.DeleteDay(ctx, "u1", 5)
	assert.ErrorIs(t, err, ErrDayNotFound)
	_, err = svc.DeleteDayByID(ctx, "u1", "d3")
	assert.ErrorIs(t, err, ErrDayNotFound)
}

func TestService_AddDay(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	saveTestProgram(t, svc, "u1")

	id, p, err := svc.AddDay(ctx, "u1", models.Day{Label: "Thu", Title: "Back", Exercises: []models.Exercise{{Name: "Row", Sets: 3, Reps: 12}}})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, []string{"d1", "d2", "d3", id}, dayIDs(p))
	assert.NotEmpty(t, p.Days[3].Exercises[0].ID)
	assertMirrorMatchesStore(t, svc, "u1")
}

func TestService_MoveDay(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	saveTestProgram(t, svc, "u1")

	p, err := svc.MoveDay(ctx, "u1", "d3", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"d3", "d1", "d2"}, dayIDs(p))
	assertMirrorMatchesStore(t, svc, "u1")

	p, err = svc.MoveDay(ctx, "u1", "d3", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2", "d3"}, dayIDs(p))

	p, err = svc.MoveDay(ctx, "u1", "d2", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2", "d3"}, dayIDs(p))

	_, err = svc.MoveDay(ctx, "u1", "d2", 3)
	assert.ErrorIs(t, err, ErrInvalidTargetSlot)
	_, err = svc.MoveDay(ctx, "u1", "zz", 0)
	assert.ErrorIs(t, err, ErrDayNotFound)
}

func TestService_IDAddressingSurvivesReorder(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	saveTestProgram(t, svc, "u1")

	_, err := svc.MoveDay(ctx, "u1", "d3", 0)
	require.NoError(t, err)

	title := "Leg Day"
	p, err := svc.UpdateDayByID(ctx, "u1", "d3", models.DayPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, 0, DayIndex(p, "d3"))
	assert.Equal(t, "Leg Day", p.Days[0].Title)
	assert.Equal(t, "Chest", p.Days[1].Title)
}

func TestService_AddExercise(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	saveTestProgram(t, svc, "u1")

	id, p, err := svc.AddExercise(ctx, "u1", 0, models.Exercise{ID: "ignored", Name: "Fly", Sets: 0, Reps: 12})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.NotEqual(t, "ignored", id)
	require.Len(t, p.Days[0].Exercises, 3)
	added := p.Days[0].Exercises[2]
	assert.Equal(t, id, added.ID)
	assert.Equal(t, "Fly", added.Name)
	assert.Equal(t, 1, added.Sets)
	assert.Equal(t, models.DefaultGym, added.Gym)
	assertMirrorMatchesStore(t, svc, "u1")

	// ids are unique within the program
	id2, _, err := svc.AddExerciseByDayID(ctx, "u1", "d2", models.Exercise{Name: "Walk", Sets: 1, Reps: 1})
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)
	assertMirrorMatchesStore(t, svc, "u1")

	_, _, err = svc.AddExercise(ctx, "u1", 9, models.Exercise{Name: "Fly"})
	assert.ErrorIs(t, err, ErrDayNotFound)
	_, _, err = svc.AddExerciseByDayID(ctx, "u1", "nope", models.Exercise{Name: "Fly"})
	assert.ErrorIs(t, err, ErrDayNotFound)
}

func TestService_UpdateExercise(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	saveTestProgram(t, svc, "u1")

	sets, note := 5, "pause at bottom"
	p, err := svc.UpdateExercise(ctx, "u1", 2, "e3", models.ExercisePatch{Sets: &sets, Note: &note})
	require.NoError(t, err)
	e := p.Days[2].Exercises[0]
	assert.Equal(t, 5, e.Sets)
	assert.Equal(t, 5, e.Reps)
	assert.Equal(t, "pause at bottom", e.Note)
	assert.Equal(t, "Squat", e.Name)
	assertMirrorMatchesStore(t, svc, "u1")

	_, err = svc.UpdateExercise(ctx, "u1", 0, "e3", models.ExercisePatch{Sets: &sets})
	assert.ErrorIs(t, err, ErrExerciseNotFound)
}

func TestService_DeleteExercise(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	saveTestProgram(t, svc, "u1")

	p, err := svc.DeleteExercise(ctx, "u1", 0, "e1")
	require.NoError(t, err)
	require.Len(t, p.Days[0].Exercises, 1)
	assert.Equal(t, "e2", p.Days[0].Exercises[0].ID)
	assertMirrorMatchesStore(t, svc, "u1")

	_, err = svc.DeleteExercise(ctx, "u1", 0, "e1")
	assert.ErrorIs(t, err, ErrExerciseNotFound)
}

func TestService_MirrorCreatedOnFirstWrite(t *testing.T) {
	svc, _, mirror := newTestService(t)
	ctx := context.Background()
	saveTestProgram(t, svc, "u1")
	mirror.Clear()

	_, err := svc.DeleteDay(ctx, "u1", 0)
	require.NoError(t, err)
	assertMirrorMatchesStore(t, svc, "u1")
}

func TestService_MirrorOutOfSyncIsReplaced(t *testing.T) {
	svc, _, mirror := newTestService(t)
	ctx := context.Background()
	saveTestProgram(t, svc, "u1")

	// mirror that lost a day the store still has
	mirror.Set("u1", &models.Program{Days: []models.Day{{ID: "d1"}}}, 1)

	_, err := svc.DeleteExercise(ctx, "u1", 2, "e3")
	require.NoError(t, err)
	assertMirrorMatchesStore(t, svc, "u1")
}

func TestService_LastWriterWins(t *testing.T) {
	a, store, _ := newTestService(t)
	ctx := context.Background()
	saveTestProgram(t, a, "u1")

	// a second process sharing the store
	b := NewService(store, newMirrorFor(t), a.logger)
	b.NewID = a.NewID
	b.Now = a.Now

	titleA, titleB := "from A", "from B"
	_, err := a.UpdateDay(ctx, "u1", 0, models.DayPatch{Title: &titleA})
	require.NoError(t, err)
	_, err = b.UpdateDay(ctx, "u1", 0, models.DayPatch{Title: &titleB})
	require.NoError(t, err)

	got, err := a.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "from B", got.Days[0].Title)
}
