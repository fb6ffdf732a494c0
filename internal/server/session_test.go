package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCallSessionActive(t *testing.T) {
	tcases := []struct {
		status SessionStatus
		active bool
	}{
		{StatusRinging, true},
		{StatusAccepted, true},
		{StatusRejected, false},
		{StatusEnded, false},
	}

	for _, tc := range tcases {
		t.Run(tc.status.String(), func(t *testing.T) {
			sess := &CallSession{Status: tc.status}
			assert.Equal(t, tc.active, sess.active())
		})
	}
}

func TestCallSessionIsParty(t *testing.T) {
	sess := &CallSession{CallerId: 1, CalleeId: 2}

	assert.True(t, sess.isParty(1))
	assert.True(t, sess.isParty(2))
	assert.False(t, sess.isParty(3))
}

func TestCallSessionStopRingTimer(t *testing.T) {
	sess := &CallSession{}
	sess.stopRingTimer()
	assert.Nil(t, sess.ringTimer)

	sess.ringTimer = time.AfterFunc(time.Hour, func() {})
	sess.stopRingTimer()
	assert.Nil(t, sess.ringTimer)
}

func TestSessionStatusString(t *testing.T) {
	assert.Equal(t, "ringing", StatusRinging.String())
	assert.Equal(t, "accepted", StatusAccepted.String())
	assert.Equal(t, "rejected", StatusRejected.String())
	assert.Equal(t, "ended", StatusEnded.String())
	assert.Equal(t, "unknown", SessionStatus(42).String())
}
