package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloser struct {
	mu     sync.Mutex
	calls  []time.Time
	result int64
	err    error
}

func (f *fakeCloser) CloseStaleResolved(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, before)
	return f.result, f.err
}

func (f *fakeCloser) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, &fakeCloser{}, "not a schedule", time.Hour)
	assert.Error(t, err)
	_, err = New(nil, &fakeCloser{}, "@every 1h", 0)
	assert.Error(t, err)
	_, err = New(nil, &fakeCloser{}, "*/5 * * * *", time.Hour)
	assert.NoError(t, err)
}

func TestRunOnceUsesCutoff(t *testing.T) {
	closer := &fakeCloser{result: 3}
	s, err := New(nil, closer, "@every 1h", 72*time.Hour)
	require.NoError(t, err)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	require.Len(t, closer.calls, 1)
	assert.Equal(t, now.Add(-72*time.Hour), closer.calls[0])

	closer.err = errors.New("db down")
	_, err = s.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestScheduledRun(t *testing.T) {
	closer := &fakeCloser{}
	s, err := New(nil, closer, "@every 1s", time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool { return closer.count() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestDisabledSweeper(t *testing.T) {
	closer := &fakeCloser{}
	s, err := New(nil, closer, "", time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop(context.Background()))
	assert.Zero(t, closer.count())
}
