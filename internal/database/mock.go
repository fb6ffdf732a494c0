package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChatRelayRepository struct {
	mock.Mock
}

func (m *MockChatRelayRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRelayRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRelayRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRelayRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRelayRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRelayRepository) GetOrCreateChat(userA, userB int) (Chat, error) {
	args := m.Called(userA, userB)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockChatRelayRepository) ListChats(accountId int) ([]ChatListEntry, error) {
	args := m.Called(accountId)
	return args.Get(0).([]ChatListEntry), args.Error(1)
}
func (m *MockChatRelayRepository) CreateMessage(msg Message) (Message, error) {
	args := m.Called(msg)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRelayRepository) GetMessagesBetween(userA, userB int) ([]Message, error) {
	args := m.Called(userA, userB)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChatRelayRepository) GetLastMessage(userA, userB int) (Message, error) {
	args := m.Called(userA, userB)
	return args.Get(0).(Message), args.Error(1)
}
