package server

import (
	"net/http"
	"time"

	"github.com/npezzotti/go-chatrelay/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the envelope for all client events; exactly one
// event field is expected to be set.
type ClientMessage struct {
	BaseMessage
	Join        *Join        `json:"join,omitempty"`
	SendMessage *SendMessage `json:"send_message,omitempty"`
	CallUser    *CallUser    `json:"call_user,omitempty"`
	AcceptCall  *AcceptCall  `json:"accept_call,omitempty"`
	RejectCall  *RejectCall  `json:"reject_call,omitempty"`
	LeaveCall   *LeaveCall   `json:"leave_call,omitempty"`
	UserId      int          `json:"-"`
	client      *Client      `json:"-"`
}

type Join struct {
	UserId int `json:"user_id"`
}

type SendMessage struct {
	Sender   int    `json:"sender"`
	Receiver int    `json:"receiver"`
	Content  string `json:"content"`
}

type CallUser struct {
	From     int    `json:"from"`
	To       int    `json:"to"`
	RoomName string `json:"room_name"`
}

type AcceptCall struct {
	From     int    `json:"from"`
	To       int    `json:"to"`
	RoomName string `json:"room_name"`
}

type RejectCall struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type LeaveCall struct {
	RoomName string `json:"room_name"`
}

const (
	eventJoin        = "join"
	eventSendMessage = "send_message"
	eventCallUser    = "call_user"
	eventAcceptCall  = "accept_call"
	eventRejectCall  = "reject_call"
	eventLeaveCall   = "leave_call"
)

// eventName reports which event field is set, or "" if none.
func (m *ClientMessage) eventName() string {
	switch {
	case m.Join != nil:
		return eventJoin
	case m.SendMessage != nil:
		return eventSendMessage
	case m.CallUser != nil:
		return eventCallUser
	case m.AcceptCall != nil:
		return eventAcceptCall
	case m.RejectCall != nil:
		return eventRejectCall
	case m.LeaveCall != nil:
		return eventLeaveCall
	default:
		return ""
	}
}

func (m *ClientMessage) GetUserId() int {
	if m.UserId != 0 {
		return m.UserId
	}

	if m.client != nil {
		return m.client.user.Id
	}

	return 0
}

type ServerMessage struct {
	BaseMessage
	Response       *Response      `json:"response,omitempty"`
	ReceiveMessage *types.Message `json:"receive_message,omitempty"`
	CallUser       *IncomingCall  `json:"call_user,omitempty"`
	CallAccepted   *CallAccepted  `json:"call_accepted,omitempty"`
	CallRejected   *CallRejected  `json:"call_rejected,omitempty"`
	CallEnded      *CallEnded     `json:"call_ended,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type IncomingCall struct {
	From     int    `json:"from"`
	RoomName string `json:"room_name"`
}

type CallAccepted struct {
	RoomName string `json:"room_name"`
}

type CallRejected struct{}

// EndReason explains why a call session was terminated server-side.
type EndReason string

const (
	ReasonUnavailable  EndReason = "unavailable"
	ReasonTimeout      EndReason = "timeout"
	ReasonLeft         EndReason = "left"
	ReasonDisconnected EndReason = "disconnected"
)

type CallEnded struct {
	RoomName string    `json:"room_name"`
	Reason   EndReason `json:"reason"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func newIncomingCall(from int, roomName string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		CallUser:    &IncomingCall{From: from, RoomName: roomName},
	}
}

func newCallAccepted(roomName string) *ServerMessage {
	return &ServerMessage{
		BaseMessage:  BaseMessage{Timestamp: Now()},
		CallAccepted: &CallAccepted{RoomName: roomName},
	}
}

func newCallRejected() *ServerMessage {
	return &ServerMessage{
		BaseMessage:  BaseMessage{Timestamp: Now()},
		CallRejected: &CallRejected{},
	}
}

func newCallEnded(roomName string, reason EndReason) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		CallEnded:   &CallEnded{RoomName: roomName, Reason: reason},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
