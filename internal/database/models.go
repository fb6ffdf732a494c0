package database

import "time"

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Chat is a conversation between exactly two accounts. The pair is
// stored normalized (UserAId < UserBId) so one row covers both
// directions.
type Chat struct {
	Id         int
	ExternalId string
	UserAId    int
	UserBId    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Message struct {
	Id             int
	ChatId         int
	ChatExternalId string
	SenderId       int
	ReceiverId     int
	Content        string
	CreatedAt      time.Time
}

// ChatListEntry is a chat joined with the other participant's account.
type ChatListEntry struct {
	ExternalId string
	Friend     User
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type UpdateAccountParams struct {
	UserId       int
	Username     string
	PasswordHash string
}
