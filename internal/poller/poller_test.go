package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/tripwatch/internal/locations"
	"github.com/jengzang/tripwatch/internal/logging"
	"github.com/jengzang/tripwatch/internal/models"
	"github.com/jengzang/tripwatch/internal/segmentation"
	"github.com/jengzang/tripwatch/internal/service"
)

type call struct {
	subject  service.Subject
	from, to time.Time
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	fail  map[string]bool
}

func (f *fakeRunner) RunSubject(_ context.Context, subject service.Subject, from, to time.Time) (*models.SegmentationRun, []segmentation.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{subject, from, to})
	if f.fail[subject.ID] {
		return nil, nil, errors.New("boom")
	}
	return &models.SegmentationRun{}, []segmentation.Trip{{}, {}}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeResolver struct {
	ids     map[string]string
	lookups int
}

func (f *fakeResolver) SubjectByName(_ context.Context, name string) (string, error) {
	f.lookups++
	if id, ok := f.ids[name]; ok {
		return id, nil
	}
	return "", locations.ErrSubjectNotFound
}

func TestPollOnce(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{"u2": true}}
	resolver := &fakeResolver{ids: map[string]string{"Alice": "u1", "Bob": "u2"}}

	p := New(runner, resolver, Config{Interval: time.Minute, Lookback: 12 * time.Hour, Names: []string{"Alice", "Bob", "Carol"}}, logging.Discard())
	now := time.UnixMilli(1669057009975)
	p.now = func() time.Time { return now }

	assert.Equal(t, 2, p.PollOnce(context.Background()))
	require.Len(t, runner.calls, 2)
	assert.Equal(t, service.Subject{ID: "u1", Name: "Alice"}, runner.calls[0].subject)
	assert.Equal(t, now.Add(-12*time.Hour), runner.calls[0].from)
	assert.Equal(t, now, runner.calls[0].to)
	assert.Equal(t, 3, resolver.lookups)

	// Known names are not looked up again; unknown ones are retried.
	resolver.ids["Carol"] = "u3"
	assert.Equal(t, 4, p.PollOnce(context.Background()))
	assert.Equal(t, 4, resolver.lookups)
	assert.Len(t, runner.calls, 5)
}

func TestRunStopsOnCancel(t *testing.T) {
	runner := &fakeRunner{}
	resolver := &fakeResolver{ids: map[string]string{"Alice": "u1"}}
	p := New(runner, resolver, Config{Interval: 10 * time.Millisecond, Lookback: time.Hour, Names: []string{"Alice"}}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return runner.count() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
