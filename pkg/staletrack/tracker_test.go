package staletrack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisTracker(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewRedisClient(context.Background(), RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return NewRedis(client, ""), mr
}

// fakeClock returns strictly increasing times
func fakeClock() func() time.Time {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func trackers(t *testing.T) map[string]Tracker {
	mem := NewMemory()
	mem.now = fakeClock()

	rt, _ := setupRedisTracker(t)
	rt.now = fakeClock()

	return map[string]Tracker{"memory": mem, "redis": rt}
}

func TestTracker_MarkListClear(t *testing.T) {
	for name, tracker := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, tracker.Mark(ctx, "document", 7, ReasonRebuildFailed, errors.New("timeout")))
			require.NoError(t, tracker.Mark(ctx, "document", 3, ReasonRebuildFailed, nil))
			require.NoError(t, tracker.Mark(ctx, "category", 1, ReasonCascadeEnumeration, errors.New("conn reset")))

			docs, err := tracker.List(ctx, "document", 0)
			require.NoError(t, err)
			require.Len(t, docs, 2)
			assert.Equal(t, int64(7), docs[0].ID)
			assert.Equal(t, "timeout", docs[0].Error)
			assert.Equal(t, int64(3), docs[1].ID)

			cats, err := tracker.List(ctx, "category", 0)
			require.NoError(t, err)
			require.Len(t, cats, 1)
			assert.Equal(t, ReasonCascadeEnumeration, cats[0].Reason)

			require.NoError(t, tracker.Clear(ctx, "document", 7))
			docs, err = tracker.List(ctx, "document", 0)
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, int64(3), docs[0].ID)

			// clearing an unknown entry is not an error
			assert.NoError(t, tracker.Clear(ctx, "document", 99))
		})
	}
}

func TestTracker_RemarkBumpsAttempts(t *testing.T) {
	for name, tracker := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, tracker.Mark(ctx, "document", 1, ReasonRebuildFailed, errors.New("first")))
			first, err := tracker.List(ctx, "document", 0)
			require.NoError(t, err)

			require.NoError(t, tracker.Mark(ctx, "document", 1, ReasonCascadePartial, errors.New("second")))
			entries, err := tracker.List(ctx, "document", 0)
			require.NoError(t, err)

			require.Len(t, entries, 1)
			assert.Equal(t, 2, entries[0].Attempts)
			assert.Equal(t, "second", entries[0].Error)
			assert.Equal(t, ReasonCascadePartial, entries[0].Reason)
			assert.True(t, first[0].MarkedAt.Equal(entries[0].MarkedAt))
		})
	}
}

func TestTracker_ListLimit(t *testing.T) {
	for name, tracker := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for id := int64(1); id <= 5; id++ {
				require.NoError(t, tracker.Mark(ctx, "document", id, ReasonRebuildFailed, nil))
			}

			entries, err := tracker.List(ctx, "document", 2)
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, int64(1), entries[0].ID)
			assert.Equal(t, int64(2), entries[1].ID)
		})
	}
}

func TestRedis_CorruptEntryDropped(t *testing.T) {
	tracker, mr := setupRedisTracker(t)
	ctx := context.Background()

	mr.HSet(defaultKeyPrefix+"document", "5", "{not json")
	require.NoError(t, tracker.Mark(ctx, "document", 6, ReasonRebuildFailed, nil))

	entries, err := tracker.List(ctx, "document", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(6), entries[0].ID)
	assert.Empty(t, mr.HGet(defaultKeyPrefix+"document", "5"))
}

func TestRedis_Unavailable(t *testing.T) {
	tracker, mr := setupRedisTracker(t)
	mr.Close()

	err := tracker.Mark(context.Background(), "document", 1, ReasonRebuildFailed, nil)
	assert.Error(t, err)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{URL: "not-a-url"})
	assert.Error(t, err)
}
