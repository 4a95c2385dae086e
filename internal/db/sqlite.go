package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/bluevi/agent/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    end_at TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL,
    content TEXT NOT NULL,
    message_type TEXT NOT NULL,
    role TEXT NOT NULL,
    flagged INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id)
);

CREATE TABLE IF NOT EXISTS message_vectors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id INTEGER,
    embedding_vector TEXT NOT NULL,
    FOREIGN KEY (message_id) REFERENCES messages(id)
);

CREATE INDEX IF NOT EXISTS ix_messages_conversation_id ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS ix_message_vectors_message_id ON message_vectors(message_id);`

type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) SaveMessage(ctx context.Context, msg *models.Message) error {
	if !msg.Role.Valid() || msg.Content == "" {
		return fmt.Errorf("%w: message requires a valid role and non-empty content", models.ErrInvalidInput)
	}

	query := `
        INSERT INTO messages (conversation_id, content, message_type, role, created_at)
        VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
        RETURNING id, created_at`

	return db.db.QueryRowContext(ctx, query, msg.ConversationID, msg.Content, msg.Type, msg.Role).
		Scan(&msg.ID, &msg.CreatedAt)
}

// MessagesByConversation returns the most recent messages of a conversation in
// creation order, oldest first. A limit <= 0 returns the whole conversation.
func (db *Database) MessagesByConversation(ctx context.Context, conversationID int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = -1 // sqlite treats LIMIT -1 as unbounded
	}

	query := `
        SELECT id, conversation_id, content, message_type, role, flagged, created_at
        FROM (
            SELECT id, conversation_id, content, message_type, role, flagged, created_at
            FROM messages
            WHERE conversation_id = ?
            ORDER BY id DESC
            LIMIT ?
        )
        ORDER BY id ASC`

	rows, err := db.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Content, &msg.Type, &msg.Role, &msg.Flagged, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (db *Database) FlagMessage(ctx context.Context, messageID int64) error {
	res, err := db.db.ExecContext(ctx, "UPDATE messages SET flagged = 1 WHERE id = ?", messageID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: message %d", models.ErrNotFound, messageID)
	}
	return nil
}

func (db *Database) CreateUser(ctx context.Context) (*models.User, error) {
	query := `
        INSERT INTO users (created_at)
        VALUES (CURRENT_TIMESTAMP)
        RETURNING id, created_at`

	user := &models.User{}
	err := db.db.QueryRowContext(ctx, query).Scan(&user.ID, &user.CreatedAt)
	return user, err
}

func (db *Database) CreateConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	query := `
        INSERT INTO conversations (user_id, created_at)
        VALUES (?, CURRENT_TIMESTAMP)
        RETURNING id, created_at`

	conv := &models.Conversation{UserID: userID}
	err := db.db.QueryRowContext(ctx, query, userID).Scan(&conv.ID, &conv.CreatedAt)
	return conv, err
}

func (db *Database) Conversations(ctx context.Context) ([]models.Conversation, error) {
	query := `
        SELECT id, user_id, created_at, end_at
        FROM conversations
        ORDER BY created_at DESC`

	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.CreatedAt, &conv.EndAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

func (db *Database) EndConversation(ctx context.Context, conversationID int64) error {
	res, err := db.db.ExecContext(ctx,
		"UPDATE conversations SET end_at = CURRENT_TIMESTAMP WHERE id = ? AND end_at IS NULL", conversationID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: open conversation %d", models.ErrNotFound, conversationID)
	}
	return nil
}

// SaveMessageVector stores an embedding for a message as a JSON array.
func (db *Database) SaveMessageVector(ctx context.Context, messageID int64, embedding []float32) error {
	payload, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	_, err = db.db.ExecContext(ctx, `
        INSERT INTO message_vectors (message_id, embedding_vector)
        VALUES (?, ?)`, messageID, string(payload))
	return err
}
