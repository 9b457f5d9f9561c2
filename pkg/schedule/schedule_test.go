package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	s := New()
	var ticks, failures atomic.Int32
	s.Every(5 * time.Millisecond).Name("tick").Run(func(context.Context) error {
		ticks.Add(1)
		return nil
	})
	s.Every(5 * time.Millisecond).Run(func(context.Context) error {
		failures.Add(1)
		return errors.New("flaky")
	})
	assert.Equal(t, []string{"tick", "task-5ms"}, s.Names())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return ticks.Load() >= 3 && failures.Load() >= 3 },
		time.Second, time.Millisecond)
	cancel()
	s.Wait()

	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, ticks.Load())
}

func TestScheduler_Immediately(t *testing.T) {
	s := New()
	ran := make(chan struct{}, 1)
	s.Every(time.Hour).Immediately().Run(func(context.Context) error {
		ran <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.Wait()
	}()
	s.Start(ctx)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("immediate task did not run")
	}
}

func TestScheduler_NoOverlapAndPanic(t *testing.T) {
	s := New()
	e := &entry{name: "slow", interval: time.Hour}
	release := make(chan struct{})
	var runs atomic.Int32
	e.task = func(context.Context) error {
		runs.Add(1)
		<-release
		panic("late")
	}

	done := make(chan struct{})
	go func() {
		s.dispatch(context.Background(), e)
		close(done)
	}()
	assert.Eventually(t, func() bool { return e.running.Load() }, time.Second, time.Millisecond)
	s.dispatch(context.Background(), e)
	close(release)
	<-done

	assert.EqualValues(t, 1, runs.Load())
	assert.False(t, e.running.Load())
}

func TestEvery_RejectsZero(t *testing.T) {
	assert.Panics(t, func() { New().Every(0).Run(func(context.Context) error { return nil }) })
}
