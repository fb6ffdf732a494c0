package database

type ChatRelayRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	UpdateAccount(params UpdateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	GetOrCreateChat(userA, userB int) (Chat, error)
	ListChats(accountId int) ([]ChatListEntry, error)
	CreateMessage(msg Message) (Message, error)
	GetMessagesBetween(userA, userB int) ([]Message, error)
	GetLastMessage(userA, userB int) (Message, error)
}
