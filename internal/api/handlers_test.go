package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chatrelay/internal/database"
	"github.com/npezzotti/go-chatrelay/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func authedRequest(method, target string, body io.Reader, userId int) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(WithUserId(req.Context(), userId))
}

func TestCreateAccount(t *testing.T) {
	app, db, _ := newTestApp(t)

	db.On("CreateAccount", mock.AnythingOfType("database.CreateAccountParams")).Return(database.User{
		Id:           1,
		Username:     "alice",
		EmailAddress: "alice@example.com",
	}, nil)

	body := strings.NewReader(`{"username":"alice","email_address":"alice@example.com","password":"hunter2"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	rec := httptest.NewRecorder()
	app.createAccount(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var user types.User
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&user))
	assert.Equal(t, "alice", user.Username)
	assert.NotContains(t, rec.Body.String(), "password")

	params := db.Calls[0].Arguments.Get(0).(database.CreateAccountParams)
	assert.NotEqual(t, "hunter2", params.PasswordHash)
}

func TestCreateAccountMissingFields(t *testing.T) {
	app, db, _ := newTestApp(t)

	body := strings.NewReader(`{"username":"alice"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	rec := httptest.NewRecorder()
	app.createAccount(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	db.AssertNotCalled(t, "CreateAccount", mock.Anything)
}

func TestLogin(t *testing.T) {
	app, db, _ := newTestApp(t)

	hash, err := hashPassword("hunter2")
	assert.NoError(t, err)

	db.On("GetAccountByEmail", "alice@example.com").Return(database.User{
		Id:           1,
		Username:     "alice",
		EmailAddress: "alice@example.com",
		PasswordHash: hash,
	}, nil)

	body := strings.NewReader(`{"email_address":"alice@example.com","password":"hunter2"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	app.login(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	assert.Len(t, cookies, 1)
	assert.Equal(t, tokenCookieKey, cookies[0].Name)

	userId, err := app.extractUserIdFromToken(cookies[0].Value)
	assert.NoError(t, err)
	assert.Equal(t, 1, userId)
}

func TestLoginWrongPassword(t *testing.T) {
	app, db, _ := newTestApp(t)

	hash, err := hashPassword("hunter2")
	assert.NoError(t, err)

	db.On("GetAccountByEmail", "alice@example.com").Return(database.User{
		Id:           1,
		PasswordHash: hash,
	}, nil)

	body := strings.NewReader(`{"email_address":"alice@example.com","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	app.login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLoginUnknownAccount(t *testing.T) {
	app, db, _ := newTestApp(t)

	db.On("GetAccountByEmail", "nobody@example.com").Return(database.User{}, sql.ErrNoRows)

	body := strings.NewReader(`{"email_address":"nobody@example.com","password":"hunter2"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	app.login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetMessages(t *testing.T) {
	app, db, _ := newTestApp(t)

	ts := time.Now().UTC().Round(time.Millisecond)
	db.On("GetMessagesBetween", 1, 2).Return([]database.Message{
		{Id: 1, ChatExternalId: "chat-abc", SenderId: 1, ReceiverId: 2, Content: "hi", CreatedAt: ts},
		{Id: 2, ChatExternalId: "chat-abc", SenderId: 2, ReceiverId: 1, Content: "hey", CreatedAt: ts.Add(time.Second)},
	}, nil)

	req := authedRequest(http.MethodGet, "/api/messages?user_id=2", nil, 1)
	rec := httptest.NewRecorder()
	app.getMessages(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var messages []types.Message
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&messages))
	assert.Len(t, messages, 2)
	assert.Equal(t, "chat-abc", messages[0].ChatId)
	assert.Equal(t, "hi", messages[0].Content)
}

func TestGetMessagesBadUserId(t *testing.T) {
	app, db, _ := newTestApp(t)

	req := authedRequest(http.MethodGet, "/api/messages?user_id=abc", nil, 1)
	rec := httptest.NewRecorder()
	app.getMessages(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	db.AssertNotCalled(t, "GetMessagesBetween", mock.Anything, mock.Anything)
}

func TestGetMessagesUnauthenticated(t *testing.T) {
	app, _, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/messages?user_id=2", nil)
	rec := httptest.NewRecorder()
	app.getMessages(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetLastMessage(t *testing.T) {
	app, db, _ := newTestApp(t)

	db.On("GetLastMessage", 1, 2).Return(database.Message{
		Id: 9, ChatExternalId: "chat-abc", SenderId: 2, ReceiverId: 1, Content: "latest",
	}, nil)

	req := authedRequest(http.MethodGet, "/api/messages/last?user_id=2", nil, 1)
	rec := httptest.NewRecorder()
	app.getLastMessage(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var msg types.Message
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, "latest", msg.Content)
}

func TestGetLastMessageNoHistory(t *testing.T) {
	app, db, _ := newTestApp(t)

	db.On("GetLastMessage", 1, 2).Return(database.Message{}, sql.ErrNoRows)

	req := authedRequest(http.MethodGet, "/api/messages/last?user_id=2", nil, 1)
	rec := httptest.NewRecorder()
	app.getLastMessage(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())
}

func TestGetChats(t *testing.T) {
	app, db, _ := newTestApp(t)

	db.On("ListChats", 1).Return([]database.ChatListEntry{
		{ExternalId: "chat-abc", Friend: database.User{Id: 2, Username: "bob"}},
	}, nil)

	req := authedRequest(http.MethodGet, "/api/chats", nil, 1)
	rec := httptest.NewRecorder()
	app.getChats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var chats []types.Chat
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&chats))
	assert.Len(t, chats, 1)
	assert.Equal(t, "chat-abc", chats[0].Id)
	assert.Equal(t, "bob", chats[0].Friend.Username)
}

func TestVideoToken(t *testing.T) {
	app, _, _ := newTestApp(t)

	body := strings.NewReader(`{"room_name":"room-1"}`)
	req := authedRequest(http.MethodPost, "/api/video/token", body, 7)
	rec := httptest.NewRecorder()
	app.videoToken(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp videoTokenResponse
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Token)
}

func TestVideoTokenMissingRoom(t *testing.T) {
	app, _, _ := newTestApp(t)

	body := strings.NewReader(`{}`)
	req := authedRequest(http.MethodPost, "/api/video/token", body, 7)
	rec := httptest.NewRecorder()
	app.videoToken(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		app, db, _ := newTestApp(t)
		db.On("Ping").Return(nil)

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		app.healthCheck(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unhealthy", func(t *testing.T) {
		app, db, _ := newTestApp(t)
		db.On("Ping").Return(fmt.Errorf("connection refused"))

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		app.healthCheck(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestServeWs(t *testing.T) {
	app, db, sp := newTestApp(t)
	sp.On("Incr", mock.AnythingOfType("string")).Return()
	sp.On("Decr", mock.AnythingOfType("string")).Return()

	db.On("GetAccountById", 7).Return(database.User{Id: 7, Username: "alice"}, nil)

	go app.ss.Run()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		app.ss.Shutdown(ctx)
	}()

	srv := httptest.NewServer(app.authMiddleware(app.serveWs))
	defer srv.Close()

	token, err := app.createJwtForSession(types.User{Id: 7}, time.Hour)
	assert.NoError(t, err)

	header := http.Header{}
	header.Add("Cookie", tokenCookieKey+"="+token)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	assert.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	assert.NoError(t, conn.WriteJSON(map[string]any{"id": 1, "join": map[string]any{}}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply map[string]any
	assert.NoError(t, conn.ReadJSON(&reply))

	response, ok := reply["response"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, float64(http.StatusOK), response["response_code"])
}

func TestServeWsNoAuth(t *testing.T) {
	app, _, _ := newTestApp(t)

	srv := httptest.NewServer(app.authMiddleware(app.serveWs))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
