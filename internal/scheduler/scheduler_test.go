package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock jumps straight to the requested instant on After.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	hang bool
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hang {
		return ch
	}
	c.now = c.now.Add(d)
	ch <- c.now
	return ch
}

// listTrigger fires at each listed instant once.
type listTrigger []time.Time

func (l listTrigger) Next(t time.Time) time.Time {
	for _, at := range l {
		if at.After(t) {
			return at
		}
	}
	return time.Time{}
}

type countingJob struct {
	mu    sync.Mutex
	clock Clock
	fired []time.Time
}

func (j *countingJob) Run(context.Context) Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fired = append(j.fired, j.clock.Now())
	return Result{PreAssignStatus: PreAssignDisabled}
}

func TestScheduler_FiresAtEachTriggerInstant(t *testing.T) {
	start := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	firings := listTrigger{
		start.Add(20*time.Hour + 5*time.Minute),
		start.Add(44*time.Hour + 5*time.Minute),
	}
	clock := &fakeClock{now: start}
	job := &countingJob{clock: clock}

	New(job, firings, clock, nil).Start(context.Background())

	assert.Equal(t, []time.Time(firings), job.fired)
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), hang: true}
	job := &countingJob{clock: clock}
	trigger := listTrigger{clock.now.Add(time.Hour)}

	ctx, cancel := context.WithCancel(context.Background())
	done := New(job, trigger, clock, nil).Loop(ctx)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Empty(t, job.fired)
}

func TestScheduler_RunOnce(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)}
	job := &countingJob{clock: clock}

	res := New(job, listTrigger{}, clock, nil).RunOnce(context.Background())

	assert.Equal(t, PreAssignDisabled, res.PreAssignStatus)
	assert.Len(t, job.fired, 1)
}

func TestCronTrigger_DefaultSchedule(t *testing.T) {
	trig, err := NewCronTrigger("35 1 * * *", "Asia/Kolkata")
	require.NoError(t, err)

	// 00:00 UTC is 05:30 IST, so the next 01:35 IST is the following day.
	next := trig.Next(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC))
	assert.True(t, next.Equal(time.Date(2026, 10, 18, 20, 5, 0, 0, time.UTC)), "got %s", next)

	after := trig.Next(next)
	assert.Equal(t, 24*time.Hour, after.Sub(next))
	assert.Equal(t, "35 1 * * * Asia/Kolkata", trig.String())
}

func TestCronTrigger_Invalid(t *testing.T) {
	_, err := NewCronTrigger("61 1 * * *", "Asia/Kolkata")
	assert.Error(t, err)

	_, err = NewCronTrigger("35 1 * * *", "Mars/Olympus")
	assert.Error(t, err)
}
