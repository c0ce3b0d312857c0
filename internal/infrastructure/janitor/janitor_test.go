package janitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvictor struct {
	calls   int
	idleFor time.Duration
	n       int
	err     error
}

func (f *fakeEvictor) EvictIdle(_ context.Context, idleFor time.Duration) (int, error) {
	f.calls++
	f.idleFor = idleFor
	return f.n, f.err
}

type fakeLocker struct {
	held bool
}

func (f *fakeLocker) WithLock(ctx context.Context, _ string, _ time.Duration, fn func(context.Context) error) (bool, error) {
	if f.held {
		return false, nil
	}
	return true, fn(ctx)
}

func TestRunOnce(t *testing.T) {
	rooms := &fakeEvictor{n: 2}
	j := New(rooms, nil, nil, "*/5 * * * *", 24*time.Hour, zerolog.Nop())

	n, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 24*time.Hour, rooms.idleFor)
}

func TestRunOnce_SkipsWhenLockHeld(t *testing.T) {
	rooms := &fakeEvictor{n: 1}
	j := New(rooms, &fakeLocker{held: true}, nil, "*/5 * * * *", time.Hour, zerolog.Nop())

	n, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, rooms.calls)
}

func TestRunOnce_PropagatesErrors(t *testing.T) {
	rooms := &fakeEvictor{err: errors.New("boom")}
	j := New(rooms, &fakeLocker{}, nil, "*/5 * * * *", time.Hour, zerolog.Nop())

	_, err := j.RunOnce(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestRun_RejectsBadSchedule(t *testing.T) {
	j := New(&fakeEvictor{}, nil, nil, "not a schedule", time.Hour, zerolog.Nop())
	assert.Error(t, j.Run(context.Background()))
}
