package server

import (
	"time"
)

type SessionStatus int

const (
	StatusRinging SessionStatus = iota
	StatusAccepted
	StatusRejected
	StatusEnded
)

func (s SessionStatus) String() string {
	switch s {
	case StatusRinging:
		return "ringing"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// CallSession is one call-signaling attempt identified by a room
// name. Owned exclusively by the SignalServer's event loop; the ring
// timer fires back into the loop rather than mutating state itself.
type CallSession struct {
	RoomName  string
	CallerId  int
	CalleeId  int
	Status    SessionStatus
	CreatedAt time.Time
	ringTimer *time.Timer
}

// active reports whether the session can still be ended (a terminal
// session must not transition again).
func (s *CallSession) active() bool {
	return s.Status == StatusRinging || s.Status == StatusAccepted
}

func (s *CallSession) isParty(userId int) bool {
	return s.CallerId == userId || s.CalleeId == userId
}

func (s *CallSession) stopRingTimer() {
	if s.ringTimer != nil {
		s.ringTimer.Stop()
		s.ringTimer = nil
	}
}
