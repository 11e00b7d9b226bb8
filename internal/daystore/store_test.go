package daystore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chatrisk/internal/transcript"
	"github.com/wolfman30/chatrisk/internal/verdict"
)

// countingBackend wraps a backend and counts writes.
type countingBackend struct {
	Backend
	mu     sync.Mutex
	writes int
}

func (c *countingBackend) Write(ctx context.Context, date string, data []byte) error {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.Backend.Write(ctx, date, data)
}

func seedStore(t *testing.T) (*Store, *countingBackend) {
	t.Helper()
	backend := &countingBackend{Backend: NewFSBackend(t.TempDir())}
	require.NoError(t, backend.Backend.Write(context.Background(), "2026-01-13", []byte(`[
  {"id": "a", "shop": "旗舰店", "messages": [], "ai_analysis": {"score": 50, "is_risk": true, "summary": "发现 1 处异常", "checkpoints": [], "highlight_indices": [], "review_status": null, "manual_reviewed": false}},
  {"id": 42, "messages": []}
]`)))
	return New(backend, nil, Options{LockTimeout: time.Second}), backend
}

func TestStore_LoadAndDates(t *testing.T) {
	s, _ := seedStore(t)
	ctx := context.Background()

	dates, err := s.Dates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-13"}, dates)

	convs, err := s.Load(ctx, "2026-01-13")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, transcript.ID("42"), convs[1].ID)

	_, err = s.Load(ctx, "2026-01-14")
	assert.True(t, errors.Is(err, ErrDayNotFound))

	_, err = s.Load(ctx, "../secret")
	assert.True(t, errors.Is(err, ErrInvalidDate))
}

func TestStore_Update(t *testing.T) {
	s, backend := seedStore(t)
	ctx := context.Background()

	err := s.Update(ctx, "2026-01-13", "a", func(c *transcript.Conversation) error {
		c.Analysis.ReviewStatus = verdict.ReviewPending
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.writes)

	convs, err := s.Load(ctx, "2026-01-13")
	require.NoError(t, err)
	assert.Equal(t, verdict.ReviewPending, convs[0].Analysis.ReviewStatus)
	assert.Contains(t, convs[0].Extra, "shop", "unknown fields survive the rewrite")

	err = s.Update(ctx, "2026-01-13", "42", func(c *transcript.Conversation) error { return nil })
	require.NoError(t, err, "numeric ids match their text form")
}

func TestStore_UpdateWithoutWrite(t *testing.T) {
	s, backend := seedStore(t)
	ctx := context.Background()
	noop := func(*transcript.Conversation) error { return nil }

	err := s.Update(ctx, "2026-01-13", "missing", noop)
	assert.True(t, errors.Is(err, ErrConversationNotFound))

	err = s.Update(ctx, "2026-02-01", "a", noop)
	assert.True(t, errors.Is(err, ErrDayNotFound))

	boom := errors.New("bad action")
	err = s.Update(ctx, "2026-01-13", "a", func(*transcript.Conversation) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 0, backend.writes)
}

func TestStore_LockTimeout(t *testing.T) {
	locker := NewLocalLocker()
	s := New(NewFSBackend(t.TempDir()), locker, Options{LockTimeout: 20 * time.Millisecond})

	unlock, err := locker.Lock(context.Background(), "2026-01-13")
	require.NoError(t, err)
	defer unlock()

	var waited time.Duration
	s.opts.OnLockWait = func(d time.Duration) { waited = d }

	err = s.Save(context.Background(), "2026-01-13", nil)
	assert.True(t, errors.Is(err, ErrLockTimeout))
	assert.GreaterOrEqual(t, waited, 20*time.Millisecond)
}

func TestStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	dir := t.TempDir()
	s := New(NewFSBackend(dir), nil, Options{LockTimeout: 5 * time.Second})
	ctx := context.Background()

	const n = 20
	convs := make([]transcript.Conversation, n)
	for i := range convs {
		convs[i] = transcript.Conversation{ID: transcript.ID(fmt.Sprint(i)), Analysis: verdict.Empty()}
	}
	require.NoError(t, s.Save(ctx, "2026-01-13", convs))

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, "2026-01-13", id, func(c *transcript.Conversation) error {
				c.Analysis.ManualReviewed = true
				return nil
			}))
		}(fmt.Sprint(i))
	}
	wg.Wait()

	got, err := s.Load(ctx, "2026-01-13")
	require.NoError(t, err)
	for _, c := range got {
		assert.True(t, c.Analysis.ManualReviewed, "update for %s was lost", c.ID)
	}
}
