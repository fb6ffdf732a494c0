package database

import (
	"time"

	"github.com/teris-io/shortid"
)

const (
	createAccountQuery = "INSERT INTO accounts (username, email, password_hash, created_at, updated_at) " +
		"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email, created_at, updated_at"
	updateAccountQuery = "UPDATE accounts SET username = $2, password_hash = $3, updated_at = $4 " +
		"WHERE id = $1 RETURNING id, username, email, created_at, updated_at"
	getAccountByIdQuery = "SELECT id, username, email, created_at, updated_at FROM accounts " +
		"WHERE id = $1 LIMIT 1"
	getAccountByEmailQuery = "SELECT id, username, email, password_hash, created_at, updated_at FROM accounts " +
		"WHERE email = $1 LIMIT 1"
	// getOrCreateChatQuery upserts on the normalized pair; the no-op
	// DO UPDATE makes RETURNING yield the existing row on conflict.
	getOrCreateChatQuery = "INSERT INTO chats (external_id, user_a, user_b, created_at, updated_at) " +
		"VALUES ($1, $2, $3, $4, $4) " +
		"ON CONFLICT (user_a, user_b) DO UPDATE SET updated_at = chats.updated_at " +
		"RETURNING id, external_id, user_a, user_b, created_at, updated_at"
	createMessageQuery = "INSERT INTO messages (chat_id, sender_id, receiver_id, content, created_at) " +
		"VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at"
	messagesBetweenQuery = "SELECT m.id, m.chat_id, c.external_id, m.sender_id, m.receiver_id, m.content, m.created_at " +
		"FROM messages m JOIN chats c ON m.chat_id = c.id " +
		"WHERE (m.sender_id = $1 AND m.receiver_id = $2) OR (m.sender_id = $2 AND m.receiver_id = $1) " +
		"ORDER BY m.created_at ASC, m.id ASC"
	lastMessageQuery = "SELECT m.id, m.chat_id, c.external_id, m.sender_id, m.receiver_id, m.content, m.created_at " +
		"FROM messages m JOIN chats c ON m.chat_id = c.id " +
		"WHERE (m.sender_id = $1 AND m.receiver_id = $2) OR (m.sender_id = $2 AND m.receiver_id = $1) " +
		"ORDER BY m.created_at DESC, m.id DESC LIMIT 1"
	listChatsQuery = "SELECT c.external_id, c.created_at, c.updated_at, a.id, a.username, a.email " +
		"FROM chats c JOIN accounts a ON a.id = CASE WHEN c.user_a = $1 THEN c.user_b ELSE c.user_a END " +
		"WHERE c.user_a = $1 OR c.user_b = $1 " +
		"ORDER BY c.updated_at DESC"
)

// normalizePair orders a chat participant pair so lookups are
// symmetric regardless of sender/receiver direction.
func normalizePair(userA, userB int) (int, int) {
	if userA > userB {
		return userB, userA
	}
	return userA, userB
}

func (db *PgChatRelayRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		createAccountQuery,
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgChatRelayRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		updateAccountQuery,
		params.UserId,
		params.Username,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgChatRelayRepository) GetAccountById(id int) (User, error) {
	row := db.conn.QueryRow(getAccountByIdQuery, id)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgChatRelayRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(getAccountByEmailQuery, email)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgChatRelayRepository) GetOrCreateChat(userA, userB int) (Chat, error) {
	a, b := normalizePair(userA, userB)

	sid, err := shortid.Generate()
	if err != nil {
		return Chat{}, err
	}

	res := db.conn.QueryRow(
		getOrCreateChatQuery,
		sid,
		a,
		b,
		time.Now().UTC(),
	)

	var chat Chat
	err = res.Scan(
		&chat.Id,
		&chat.ExternalId,
		&chat.UserAId,
		&chat.UserBId,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)

	return chat, err
}

func (db *PgChatRelayRepository) CreateMessage(msg Message) (Message, error) {
	res := db.conn.QueryRow(
		createMessageQuery,
		msg.ChatId,
		msg.SenderId,
		msg.ReceiverId,
		msg.Content,
		msg.CreatedAt,
	)

	err := res.Scan(&msg.Id, &msg.CreatedAt)

	return msg, err
}

func (db *PgChatRelayRepository) GetMessagesBetween(userA, userB int) ([]Message, error) {
	rows, err := db.conn.Query(messagesBetweenQuery, userA, userB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(
			&msg.Id,
			&msg.ChatId,
			&msg.ChatExternalId,
			&msg.SenderId,
			&msg.ReceiverId,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}

func (db *PgChatRelayRepository) GetLastMessage(userA, userB int) (Message, error) {
	row := db.conn.QueryRow(lastMessageQuery, userA, userB)

	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.ChatId,
		&msg.ChatExternalId,
		&msg.SenderId,
		&msg.ReceiverId,
		&msg.Content,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgChatRelayRepository) ListChats(accountId int) ([]ChatListEntry, error) {
	rows, err := db.conn.Query(listChatsQuery, accountId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats = make([]ChatListEntry, 0)
	for rows.Next() {
		var entry ChatListEntry
		if err = rows.Scan(
			&entry.ExternalId,
			&entry.CreatedAt,
			&entry.UpdatedAt,
			&entry.Friend.Id,
			&entry.Friend.Username,
			&entry.Friend.EmailAddress,
		); err != nil {
			break
		}

		chats = append(chats, entry)
	}

	return chats, err
}
