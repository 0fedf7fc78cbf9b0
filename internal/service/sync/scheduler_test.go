package sync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// panickingSettings delegates to a fakeSettings once the configured number of
// Get calls have panicked. Counters are atomic because the scheduler runs the
// pass on its own goroutine.
type panickingSettings struct {
	inner      *fakeSettings
	panicsLeft int32
	cursorSets int32
}

func (s *panickingSettings) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if atomic.AddInt32(&s.panicsLeft, -1) >= 0 {
		panic("settings backend unavailable")
	}
	return s.inner.Get(ctx, key, dest)
}

func (s *panickingSettings) Set(ctx context.Context, key string, value interface{}) error {
	err := s.inner.Set(ctx, key, value)
	if err == nil {
		atomic.AddInt32(&s.cursorSets, 1)
	}
	return err
}

func TestSchedulerSurvivesPanickingPass(t *testing.T) {
	mailbox := &fakeMailbox{pages: [][]string{{}}}
	settings := &panickingSettings{inner: newFakeSettings(), panicsLeft: 1}
	e := NewEngine(&fakeMailboxFactory{mailbox: mailbox}, newFakeEmailStore(), &fakeUserStore{}, settings, &fakePublisher{}, 100, zap.NewNop())
	s := NewScheduler(e, 2*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// The first tick panics inside the pass. If the loop survives, a later
	// tick completes a full pass and writes the cursor.
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&settings.cursorSets) >= 1
	}, 2*time.Second, 2*time.Millisecond)

	cancel()
	<-done
	assert.LessOrEqual(t, settings.panicsLeft, int32(0))
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	mailbox := &fakeMailbox{pages: [][]string{{}}}
	e := newTestEngine(mailbox, newFakeEmailStore(), &fakeUserStore{}, newFakeSettings(), &fakePublisher{})
	s := NewScheduler(e, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
