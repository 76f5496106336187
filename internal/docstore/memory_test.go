package docstore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "channel closed")
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func decodeSnapshot(t *testing.T, s Snapshot) testDoc {
	t.Helper()
	require.NoError(t, s.Err)
	require.NotNil(t, s.Doc)
	var d testDoc
	require.NoError(t, s.Doc.Decode(&d))
	return d
}

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return fixed }

	_, err := s.Get(ctx, "users", "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	doc, err := s.Set(ctx, "users", "u1", testDoc{Name: "a", Count: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)
	assert.Equal(t, fixed, doc.UpdatedAt)

	doc, err = s.Set(ctx, "users", "u1", testDoc{Name: "b", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.Version)

	got, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	var d testDoc
	require.NoError(t, got.Decode(&d))
	assert.Equal(t, testDoc{Name: "b", Count: 2}, d)

	// returned documents are copies
	got.Data[0] = 'x'
	again, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.True(t, json.Valid(again.Data))
}

func TestMemoryStore_SetRejectsInvalidJSON(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Set(context.Background(), "users", "u1", json.RawMessage(`{bad`))
	assert.Error(t, err)
}

func TestMemoryStore_SetIfVersion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	doc, err := s.SetIfVersion(ctx, "users", "u1", testDoc{Name: "a"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)

	// must-not-exist fails once the document is there
	_, err = s.SetIfVersion(ctx, "users", "u1", testDoc{Name: "b"}, 0)
	assert.ErrorIs(t, err, ErrVersionConflict)

	_, err = s.SetIfVersion(ctx, "users", "u1", testDoc{Name: "b"}, 5)
	assert.ErrorIs(t, err, ErrVersionConflict)

	doc, err = s.SetIfVersion(ctx, "users", "u1", testDoc{Name: "b"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.Version)
}

func TestMemoryStore_SetIfVersion_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Set(ctx, "users", "u1", testDoc{})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.SetIfVersion(ctx, "users", "u1", testDoc{Count: i}, 1); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryStore_Update(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Update(ctx, "users", "u1", map[string]any{"count": 3})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Set(ctx, "users", "u1", testDoc{Name: "a", Count: 1})
	require.NoError(t, err)

	doc, err := s.Update(ctx, "users", "u1", map[string]any{"count": 3})
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.Version)

	var d testDoc
	require.NoError(t, doc.Decode(&d))
	assert.Equal(t, testDoc{Name: "a", Count: 3}, d)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Delete(ctx, "users", "missing"))

	_, err := s.Set(ctx, "users", "u1", testDoc{Name: "a"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "users", "u1"))

	_, err = s.Get(ctx, "users", "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	// a recreated document starts over
	doc, err := s.SetIfVersion(ctx, "users", "u1", testDoc{Name: "b"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)
}

func TestMemoryStore_Subscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryStore()

	_, err := s.Set(ctx, "users", "u1", testDoc{Name: "a", Count: 1})
	require.NoError(t, err)

	ch, err := s.Subscribe(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Subscribers("users", "u1"))

	// initial state first
	assert.Equal(t, testDoc{Name: "a", Count: 1}, decodeSnapshot(t, receive(t, ch)))

	_, err = s.Update(ctx, "users", "u1", map[string]any{"count": 2})
	require.NoError(t, err)
	assert.Equal(t, testDoc{Name: "a", Count: 2}, decodeSnapshot(t, receive(t, ch)))

	require.NoError(t, s.Delete(ctx, "users", "u1"))
	snap := receive(t, ch)
	assert.NoError(t, snap.Err)
	assert.Nil(t, snap.Doc)

	// other documents do not leak into this feed
	_, err = s.Set(ctx, "users", "u2", testDoc{Name: "other"})
	require.NoError(t, err)
	_, err = s.Set(ctx, "users", "u1", testDoc{Name: "back"})
	require.NoError(t, err)
	assert.Equal(t, "back", decodeSnapshot(t, receive(t, ch)).Name)

	cancel()
	for range ch {
	}
	assert.Eventually(t, func() bool {
		return s.Subscribers("users", "u1") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_Subscribe_Missing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryStore()

	ch, err := s.Subscribe(ctx, "users", "nobody")
	require.NoError(t, err)

	snap := receive(t, ch)
	assert.NoError(t, snap.Err)
	assert.Nil(t, snap.Doc)
}

func TestMemoryStore_Subscribe_SlowConsumerSeesLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryStore()

	_, err := s.Set(ctx, "users", "u1", testDoc{Count: 0})
	require.NoError(t, err)
	ch, err := s.Subscribe(ctx, "users", "u1")
	require.NoError(t, err)

	for i := 1; i <= 50; i++ {
		_, err := s.Set(ctx, "users", "u1", testDoc{Count: i})
		require.NoError(t, err)
	}

	// whatever was coalesced, the feed converges on the latest write
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if decodeSnapshot(t, snap).Count == 50 {
				return
			}
		case <-deadline:
			t.Fatal("never received the latest snapshot")
		}
	}
}
