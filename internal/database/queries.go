package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/filingline/chat-relay/internal/types"
)

func (db *PgRelayRepository) GetAccountById(accountId int) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, password_hash, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var acct Account
	err := row.Scan(
		&acct.Id,
		&acct.EmailAddress,
		&acct.PasswordHash,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)

	return acct, err
}

func (db *PgRelayRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var acct Account
	err := row.Scan(
		&acct.Id,
		&acct.EmailAddress,
		&acct.PasswordHash,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)

	return acct, err
}

// IsAdmin reports whether the account appears in the administrator registry.
func (db *PgRelayRepository) IsAdmin(accountId int) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM admins WHERE account_id = $1)",
		accountId,
	)

	var isAdmin bool
	err := row.Scan(&isAdmin)

	return isAdmin, err
}

func (db *PgRelayRepository) GetOrderById(orderId int) (Order, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, account_id, status, created_at, updated_at FROM orders "+
			"WHERE id = $1 LIMIT 1",
		orderId,
	)

	return scanOrder(row)
}

func (db *PgRelayRepository) GetOrderByExternalId(externalId string) (Order, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, account_id, status, created_at, updated_at FROM orders "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	return scanOrder(row)
}

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var order Order
	err := row.Scan(
		&order.Id,
		&order.ExternalId,
		&order.AccountId,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)

	return order, err
}

// CreateMessage persists a new message row. Read flags are seeded so that
// the side which sent the message has already read it.
func (db *PgRelayRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	attachments, err := encodeAttachments(params.Attachments)
	if err != nil {
		return Message{}, fmt.Errorf("encode attachments: %w", err)
	}

	row := db.conn.QueryRow(
		"INSERT INTO messages (order_id, sender_id, is_admin, message_text, attachments, read_by_user, read_by_admin, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8) "+
			"RETURNING id, order_id, sender_id, is_admin, message_text, attachments, read_by_user, read_by_admin, created_at",
		params.OrderId,
		params.SenderId,
		params.IsAdmin,
		params.MessageText,
		attachments,
		!params.IsAdmin,
		params.IsAdmin,
		time.Now().UTC(),
	)

	return scanMessage(row)
}

func (db *PgRelayRepository) GetMessageById(messageId int) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT id, order_id, sender_id, is_admin, message_text, attachments, read_by_user, read_by_admin, created_at "+
			"FROM messages WHERE id = $1 LIMIT 1",
		messageId,
	)

	return scanMessage(row)
}

func (db *PgRelayRepository) ListMessagesByOrderId(orderId, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT id, order_id, sender_id, is_admin, message_text, attachments, read_by_user, read_by_admin, created_at "+
			"FROM messages WHERE order_id = $1 ORDER BY id ASC LIMIT $2",
		orderId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// MarkMessagesRead flips the read flag for one side of the conversation on
// every message in the order that the other side sent. This is the only
// post-creation mutation of a message row.
func (db *PgRelayRepository) MarkMessagesRead(orderId int, adminSide bool) error {
	var err error
	if adminSide {
		_, err = db.conn.Exec(
			"UPDATE messages SET read_by_admin = true WHERE order_id = $1 AND NOT read_by_admin",
			orderId,
		)
	} else {
		_, err = db.conn.Exec(
			"UPDATE messages SET read_by_user = true WHERE order_id = $1 AND NOT read_by_user",
			orderId,
		)
	}

	return err
}

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var (
		msg Message
		raw []byte
	)
	err := row.Scan(
		&msg.Id,
		&msg.OrderId,
		&msg.SenderId,
		&msg.IsAdmin,
		&msg.MessageText,
		&raw,
		&msg.ReadByUser,
		&msg.ReadByAdmin,
		&msg.CreatedAt,
	)
	if err != nil {
		return Message{}, err
	}

	msg.Attachments, err = decodeAttachments(raw)
	if err != nil {
		return Message{}, fmt.Errorf("decode attachments: %w", err)
	}

	return msg, nil
}

func encodeAttachments(attachments []types.Attachment) ([]byte, error) {
	if attachments == nil {
		attachments = []types.Attachment{}
	}

	return json.Marshal(attachments)
}

func decodeAttachments(raw []byte) ([]types.Attachment, error) {
	attachments := make([]types.Attachment, 0)
	if len(raw) == 0 {
		return attachments, nil
	}

	err := json.Unmarshal(raw, &attachments)
	return attachments, err
}
