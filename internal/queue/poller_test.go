package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloomreach-forms/internal/common/logger"
	"bloomreach-forms/internal/submission"
)

func TestPoller_DeliversDueJobs(t *testing.T) {
	sched, _ := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Zero delay so the job is due on the first tick.
	require.NoError(t, sched.Enqueue(ctx, testJob("req-1"), 0))

	var mu sync.Mutex
	var handled []string
	handle := func(_ context.Context, job *submission.Job) {
		mu.Lock()
		handled = append(handled, job.RequestID)
		mu.Unlock()
	}

	poller := NewPoller(sched, 10*time.Millisecond, handle, logger.NewNoOpLogger())
	go poller.Run(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"req-1"}, handled)
	mu.Unlock()
}

func TestPoller_StopsOnContextCancel(t *testing.T) {
	sched, _ := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())

	poller := NewPoller(sched, 10*time.Millisecond, func(context.Context, *submission.Job) {}, logger.NewNoOpLogger())

	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}
