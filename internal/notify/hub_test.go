package notify

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/finclass/bank-sim/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestHub_DeliversToSubscribedSession(t *testing.T) {
	hub := NewHub(testLogger())
	ch := hub.Subscribe("dima")
	defer hub.Unsubscribe("dima", ch)

	hub.Notify(models.Notification{AccountHolder: "dima", NewBalance: 42, Description: "Salary: +42.00 RUB"})

	select {
	case n := <-ch:
		require.Equal(t, 42.0, n.NewBalance)
		require.Equal(t, "Salary: +42.00 RUB", n.Description)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestHub_NoSessionIsNotAnError(t *testing.T) {
	hub := NewHub(testLogger())
	// No subscriber for this holder; must simply drop.
	hub.Notify(models.Notification{AccountHolder: "nobody"})
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(testLogger())
	ch := hub.Subscribe("dima")
	defer hub.Unsubscribe("dima", ch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sessionBuffer+10; i++ {
			hub.Notify(models.Notification{AccountHolder: "dima"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full session buffer")
	}
}

// A session disconnecting while a timer callback is notifying must never
// crash the process: Notify may not send on a channel Unsubscribe has closed.
func TestHub_NotifyRacingUnsubscribeNeverPanics(t *testing.T) {
	hub := NewHub(testLogger())

	for i := 0; i < 2000; i++ {
		ch := hub.Subscribe("dima")
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Notify(models.Notification{AccountHolder: "dima"})
		}()
		go func() {
			defer wg.Done()
			hub.Unsubscribe("dima", ch)
		}()
		wg.Wait()
	}
}

type failingSink struct{ calls atomic.Int32 }

func (f *failingSink) Send(models.Notification) error {
	f.calls.Add(1)
	return errors.New("smtp down")
}

func TestHub_SinkFailureIsSwallowed(t *testing.T) {
	hub := NewHub(testLogger())
	sink := &failingSink{}
	hub.AddSink(sink)

	hub.Notify(models.Notification{AccountHolder: "dima"})

	require.Eventually(t, func() bool {
		return sink.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)
}
