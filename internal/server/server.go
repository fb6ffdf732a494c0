package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-chatrelay/internal/database"
	"github.com/npezzotti/go-chatrelay/internal/stats"
	"github.com/npezzotti/go-chatrelay/internal/types"
)

type stopReq struct {
	done chan struct{}
}

// SignalServer is the real-time core: a single event loop owning the
// presence registry and the call-session map. All registry and
// session mutations happen on the Run goroutine, so events from one
// connection are handled in arrival order and no locking is needed
// around session state.
type SignalServer struct {
	log             *log.Logger
	db              database.ChatRelayRepository
	stats           stats.StatsProvider
	presence        *PresenceRegistry
	sessions        map[string]*CallSession
	clients         map[*Client]struct{}
	clientsLock     sync.Mutex
	clientMsgChan   chan *ClientMessage
	registerChan    chan *Client
	deRegisterChan  chan *Client
	ringTimeoutChan chan string
	ringTimeout     time.Duration
	handlers        map[string]func(*ClientMessage)
	stop            chan stopReq
}

func NewSignalServer(logger *log.Logger, db database.ChatRelayRepository, sp stats.StatsProvider, ringTimeout time.Duration) (*SignalServer, error) {
	ss := &SignalServer{
		log:             logger,
		db:              db,
		stats:           sp,
		presence:        NewPresenceRegistry(),
		sessions:        make(map[string]*CallSession),
		clients:         make(map[*Client]struct{}),
		clientMsgChan:   make(chan *ClientMessage, 256),
		registerChan:    make(chan *Client),
		deRegisterChan:  make(chan *Client),
		ringTimeoutChan: make(chan string, 64),
		ringTimeout:     ringTimeout,
		stop:            make(chan stopReq),
	}

	ss.handlers = map[string]func(*ClientMessage){
		eventJoin:        ss.handleJoin,
		eventSendMessage: ss.handleSendMessage,
		eventCallUser:    ss.handleCallUser,
		eventAcceptCall:  ss.handleAcceptCall,
		eventRejectCall:  ss.handleRejectCall,
		eventLeaveCall:   ss.handleLeaveCall,
	}

	sp.RegisterMetric("NumActiveConnections")
	sp.RegisterMetric("NumOnlineUsers")
	sp.RegisterMetric("NumActiveCalls")
	sp.RegisterMetric("NumMessagesRelayed")

	return ss, nil
}

func (ss *SignalServer) Run() {
	for {
		select {
		case client := <-ss.registerChan:
			ss.log.Printf("adding connection from %q", client.user.Username)
			ss.addClient(client)
		case client := <-ss.deRegisterChan:
			ss.log.Printf("removing connection from %q", client.user.Username)
			ss.removeClient(client)
		case msg := <-ss.clientMsgChan:
			ss.dispatch(msg)
		case roomName := <-ss.ringTimeoutChan:
			ss.handleRingTimeout(roomName)
		case req := <-ss.stop:
			ss.log.Println("shutting down signal server")
			ss.clientsLock.Lock()
			for c := range ss.clients {
				c.stopClient()
			}
			ss.clientsLock.Unlock()

			for _, sess := range ss.sessions {
				sess.stopRingTimer()
			}

			close(req.done)
			return
		}
	}
}

func (ss *SignalServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case ss.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ss *SignalServer) RegisterClient(c *Client) {
	ss.registerChan <- c
}

func (ss *SignalServer) addClient(c *Client) {
	ss.clientsLock.Lock()
	defer ss.clientsLock.Unlock()
	ss.clients[c] = struct{}{}
	ss.stats.Incr("NumActiveConnections")
}

func (ss *SignalServer) removeClient(c *Client) {
	ss.clientsLock.Lock()
	if _, ok := ss.clients[c]; ok {
		delete(ss.clients, c)
		ss.stats.Decr("NumActiveConnections")
	}
	ss.clientsLock.Unlock()

	wasOnline := ss.presence.Online(c.user.Id)
	ss.presence.Unregister(c)

	// a session ends only when the party's last connection is gone,
	// so closing one of several tabs doesn't kill the call; a caller
	// that never joined has no presence entry but may still hold
	// sessions, so teardown cannot depend on prior presence
	if !ss.presence.Online(c.user.Id) {
		if wasOnline {
			ss.stats.Decr("NumOnlineUsers")
		}
		ss.endSessionsFor(c.user.Id, ReasonDisconnected)
	}
}

func (ss *SignalServer) dispatch(msg *ClientMessage) {
	name := msg.eventName()
	handler, ok := ss.handlers[name]
	if !ok {
		ss.log.Printf("unknown event from user %d", msg.GetUserId())
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	handler(msg)
}

func (ss *SignalServer) handleJoin(msg *ClientMessage) {
	join := msg.Join
	if join.UserId != 0 && join.UserId != msg.GetUserId() {
		ss.log.Printf("join user id %d does not match authenticated user %d", join.UserId, msg.GetUserId())
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	wasOnline := ss.presence.Online(msg.GetUserId())
	ss.presence.Register(msg.client)
	if !wasOnline {
		ss.stats.Incr("NumOnlineUsers")
	}

	msg.client.queueMessage(NoErrOK(msg.Id, nil))
}

func (ss *SignalServer) handleSendMessage(msg *ClientMessage) {
	sm := msg.SendMessage
	if sm.Receiver == 0 || sm.Content == "" {
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	sender := msg.GetUserId()
	if sm.Sender != 0 && sm.Sender != sender {
		ss.log.Printf("sender %d does not match authenticated user %d", sm.Sender, sender)
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	chat, err := ss.db.GetOrCreateChat(sender, sm.Receiver)
	if err != nil {
		ss.log.Println("GetOrCreateChat:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	created, err := ss.db.CreateMessage(database.Message{
		ChatId:     chat.Id,
		SenderId:   sender,
		ReceiverId: sm.Receiver,
		Content:    sm.Content,
		CreatedAt:  msg.Timestamp,
	})
	if err != nil {
		// surface persistence failure to the sender so the client's
		// optimistic echo doesn't desync from the store
		ss.log.Println("CreateMessage:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	relayed := &types.Message{
		Id:         created.Id,
		ChatId:     chat.ExternalId,
		SenderId:   sender,
		ReceiverId: sm.Receiver,
		Content:    sm.Content,
		Timestamp:  created.CreatedAt,
	}

	// ack the sender with the persisted record
	msg.client.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{
			Id:        msg.Id,
			Timestamp: created.CreatedAt,
		},
		Response: &Response{
			ResponseCode: 200,
			Data:         map[string]any{"message": relayed},
		},
	})

	// an offline receiver gets nothing; history fetch on reconnect
	// is the recovery path
	for _, conn := range ss.presence.ConnectionsFor(sm.Receiver) {
		conn.queueMessage(&ServerMessage{
			BaseMessage:    BaseMessage{Timestamp: created.CreatedAt},
			ReceiveMessage: relayed,
		})
	}

	ss.stats.Incr("NumMessagesRelayed")
}

func (ss *SignalServer) handleCallUser(msg *ClientMessage) {
	cu := msg.CallUser
	if cu.RoomName == "" || cu.To == 0 {
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	caller := msg.GetUserId()
	if cu.From != 0 && cu.From != caller {
		ss.log.Printf("call from %d does not match authenticated user %d", cu.From, caller)
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	if _, ok := ss.sessions[cu.RoomName]; ok {
		ss.log.Printf("call session %q already exists", cu.RoomName)
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	calleeConns := ss.presence.ConnectionsFor(cu.To)
	if len(calleeConns) == 0 {
		// callee offline: report unavailable immediately instead of
		// letting the caller ring into the void
		ss.log.Printf("callee %d unavailable for room %q", cu.To, cu.RoomName)
		msg.client.queueMessage(newCallEnded(cu.RoomName, ReasonUnavailable))
		return
	}

	sess := &CallSession{
		RoomName:  cu.RoomName,
		CallerId:  caller,
		CalleeId:  cu.To,
		Status:    StatusRinging,
		CreatedAt: msg.Timestamp,
	}

	if ss.ringTimeout > 0 {
		roomName := cu.RoomName
		sess.ringTimer = time.AfterFunc(ss.ringTimeout, func() {
			select {
			case ss.ringTimeoutChan <- roomName:
			default:
			}
		})
	}

	ss.sessions[cu.RoomName] = sess
	ss.stats.Incr("NumActiveCalls")

	msg.client.queueMessage(NoErrAccepted(msg.Id))

	for _, conn := range calleeConns {
		conn.queueMessage(newIncomingCall(caller, cu.RoomName))
	}
}

func (ss *SignalServer) handleAcceptCall(msg *ClientMessage) {
	ac := msg.AcceptCall

	sess, ok := ss.sessions[ac.RoomName]
	if !ok {
		ss.log.Printf("accept for unknown room %q", ac.RoomName)
		return
	}

	if sess.Status != StatusRinging {
		// late accept on a settled session is ignored
		ss.log.Printf("accept for room %q in state %s, ignoring", ac.RoomName, sess.Status)
		return
	}

	if msg.GetUserId() != sess.CalleeId {
		ss.log.Printf("accept for room %q from non-callee %d", ac.RoomName, msg.GetUserId())
		return
	}

	sess.Status = StatusAccepted
	sess.stopRingTimer()

	msg.client.queueMessage(NoErrOK(msg.Id, nil))

	// zero caller connections is not an error; the session is
	// accepted regardless
	for _, conn := range ss.presence.ConnectionsFor(sess.CallerId) {
		conn.queueMessage(newCallAccepted(sess.RoomName))
	}
}

func (ss *SignalServer) handleRejectCall(msg *ClientMessage) {
	rc := msg.RejectCall
	callee := msg.GetUserId()

	// reject carries no room name; match the oldest ringing session
	// for the (caller, callee) pair
	var sess *CallSession
	for _, s := range ss.sessions {
		if s.Status != StatusRinging || s.CallerId != rc.To || s.CalleeId != callee {
			continue
		}
		if sess == nil || s.CreatedAt.Before(sess.CreatedAt) {
			sess = s
		}
	}

	if sess == nil {
		ss.log.Printf("reject from %d for caller %d matches no ringing session", callee, rc.To)
		return
	}

	sess.Status = StatusRejected
	sess.stopRingTimer()

	msg.client.queueMessage(NoErrOK(msg.Id, nil))

	for _, conn := range ss.presence.ConnectionsFor(sess.CallerId) {
		conn.queueMessage(newCallRejected())
	}

	ss.terminateSession(sess)
}

func (ss *SignalServer) handleLeaveCall(msg *ClientMessage) {
	lc := msg.LeaveCall

	sess, ok := ss.sessions[lc.RoomName]
	if !ok || !sess.isParty(msg.GetUserId()) || !sess.active() {
		ss.log.Printf("leave for room %q from user %d matches no active session", lc.RoomName, msg.GetUserId())
		return
	}

	other := sess.CallerId
	if msg.GetUserId() == sess.CallerId {
		other = sess.CalleeId
	}

	sess.Status = StatusEnded
	sess.stopRingTimer()

	msg.client.queueMessage(NoErrOK(msg.Id, nil))

	for _, conn := range ss.presence.ConnectionsFor(other) {
		conn.queueMessage(newCallEnded(sess.RoomName, ReasonLeft))
	}

	ss.terminateSession(sess)
}

func (ss *SignalServer) handleRingTimeout(roomName string) {
	sess, ok := ss.sessions[roomName]
	if !ok || sess.Status != StatusRinging {
		return
	}

	ss.log.Printf("call session %q rang for %s with no answer", roomName, ss.ringTimeout)
	sess.Status = StatusEnded

	// missed-call notice to the caller
	for _, conn := range ss.presence.ConnectionsFor(sess.CallerId) {
		conn.queueMessage(newCallEnded(roomName, ReasonTimeout))
	}

	ss.terminateSession(sess)
}

// endSessionsFor terminates every active session the user is a party
// to and notifies the other party.
func (ss *SignalServer) endSessionsFor(userId int, reason EndReason) {
	for _, sess := range ss.sessions {
		if !sess.active() || !sess.isParty(userId) {
			continue
		}

		other := sess.CallerId
		if userId == sess.CallerId {
			other = sess.CalleeId
		}

		sess.Status = StatusEnded
		sess.stopRingTimer()

		for _, conn := range ss.presence.ConnectionsFor(other) {
			conn.queueMessage(newCallEnded(sess.RoomName, reason))
		}

		ss.terminateSession(sess)
	}
}

func (ss *SignalServer) terminateSession(sess *CallSession) {
	delete(ss.sessions, sess.RoomName)
	ss.stats.Decr("NumActiveCalls")
}

// SessionStatus reports the state of a call session by room name.
func (ss *SignalServer) SessionStatus(roomName string) (SessionStatus, bool) {
	sess, ok := ss.sessions[roomName]
	if !ok {
		return 0, false
	}
	return sess.Status, true
}
