package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueMessageDropsWhenFull(t *testing.T) {
	ss, _, _ := newTestSignalServer(t, 0)
	c := newTestClient(t, ss, 1, "alice")

	for i := 0; i < cap(c.send); i++ {
		assert.True(t, c.queueMessage(NoErrOK(i, nil)))
	}

	assert.False(t, c.queueMessage(NoErrOK(99, nil)))
}

func TestStopClientIdempotent(t *testing.T) {
	ss, _, _ := newTestSignalServer(t, 0)
	c := newTestClient(t, ss, 1, "alice")

	c.stopClient()
	c.stopClient()

	select {
	case <-c.stop:
	default:
		t.Fatal("stop channel not closed")
	}
}

func TestCleanupReturnsAfterShutdown(t *testing.T) {
	ss, _, _ := newTestSignalServer(t, 0)
	c := newTestClient(t, ss, 1, "alice")

	// simulate the event loop having exited: stop is closed and
	// nothing drains deRegisterChan
	c.stopClient()

	done := make(chan struct{})
	go func() {
		c.cleanup()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup blocked after the event loop stopped")
	}
}
