// Package store: SQLite-backed implementation.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/caredesk/caredesk/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetUser(id string) (*models.User, error) {
	var u models.User
	var email sql.NullString
	err := s.db.QueryRow(`SELECT id, email, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUser failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query user %s: %w", id, err)
	}
	u.Email = email.String
	return &u, nil
}

func (s *SQLiteStore) SaveUser(u models.User) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO users (id, email, created_at) VALUES (?, ?, ?)`,
		u.ID, nilIfEmpty(u.Email), u.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveUser failed", "error", err, "id", u.ID)
		return fmt.Errorf("failed to save user %s: %w", u.ID, err)
	}
	return nil
}

func (s *SQLiteStore) CreateConversation(c models.Conversation) error {
	_, err := s.db.Exec(`INSERT INTO conversations (id, user_id, escalated, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, nilIfEmpty(c.UserID), c.Escalated, c.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateConversation failed", "error", err, "id", c.ID)
		return fmt.Errorf("failed to insert conversation %s: %w", c.ID, err)
	}
	slog.Debug("SQLiteStore CreateConversation succeeded", "id", c.ID, "escalated", c.Escalated)
	return nil
}

func (s *SQLiteStore) GetConversation(id string) (*models.Conversation, error) {
	row := s.db.QueryRow(`SELECT id, user_id, escalated, created_at FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if err != nil {
		slog.Error("SQLiteStore GetConversation failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query conversation %s: %w", id, err)
	}
	return c, nil
}

func (s *SQLiteStore) MarkConversationEscalated(id string) error {
	_, err := s.db.Exec(`UPDATE conversations SET escalated = 1 WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore MarkConversationEscalated failed", "error", err, "id", id)
		return fmt.Errorf("failed to escalate conversation %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) ListEscalations(limit int) ([]models.EscalationSummary, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.escalated, c.created_at,
		       COALESCE((SELECT m.content FROM messages m
		                 WHERE m.conversation_id = c.id
		                 ORDER BY m.created_at DESC, m.rowid DESC LIMIT 1), '')
		FROM conversations c
		WHERE c.escalated = 1
		ORDER BY c.created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		slog.Error("SQLiteStore ListEscalations query failed", "error", err)
		return nil, fmt.Errorf("failed to query escalations: %w", err)
	}
	defer rows.Close()

	var summaries []models.EscalationSummary
	for rows.Next() {
		var e models.EscalationSummary
		if err := rows.Scan(&e.ID, &e.Escalated, &e.CreatedAt, &e.LastMessage); err != nil {
			slog.Error("SQLiteStore ListEscalations scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan escalation row: %w", err)
		}
		summaries = append(summaries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate escalation rows: %w", err)
	}
	return summaries, nil
}

func (s *SQLiteStore) AddMessage(m models.Message) error {
	_, err := s.db.Exec(`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "conversationID", m.ConversationID)
		return fmt.Errorf("failed to insert message for conversation %s: %w", m.ConversationID, err)
	}
	return nil
}

func (s *SQLiteStore) GetMessages(conversationID string) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, role, content, created_at FROM messages
		WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC`, conversationID)
	if err != nil {
		slog.Error("SQLiteStore GetMessages query failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			slog.Error("SQLiteStore GetMessages scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

func (s *SQLiteStore) SaveOrder(o models.Order) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO orders (id, user_id, status, delivery_eta, created_at) VALUES (?, ?, ?, ?, ?)`,
		o.ID, nilIfEmpty(o.UserID), o.Status, nilIfEmpty(o.DeliveryETA), o.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveOrder failed", "error", err, "id", o.ID)
		return fmt.Errorf("failed to save order %s: %w", o.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetOrder(id string) (*models.Order, error) {
	row := s.db.QueryRow(`SELECT id, user_id, status, delivery_eta, created_at FROM orders WHERE id = ?`, id)
	o, err := scanOrderColumns(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetOrder failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query order %s: %w", id, err)
	}
	return &o, nil
}

func (s *SQLiteStore) ListRecentOrders(userID string, limit int) ([]models.Order, error) {
	rows, err := s.db.Query(`SELECT id, user_id, status, delivery_eta, created_at FROM orders
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		slog.Error("SQLiteStore ListRecentOrders query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrderColumns(rows.Scan)
		if err != nil {
			slog.Error("SQLiteStore ListRecentOrders scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order rows: %w", err)
	}
	return orders, nil
}

func (s *SQLiteStore) AddKnowledgeEntry(e models.KnowledgeEntry) error {
	embedding, err := marshalJSONColumn(e.Embedding)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO knowledge_entries (id, question, answer, embedding) VALUES (?, ?, ?, ?)`,
		e.ID, e.Question, e.Answer, embedding)
	if err != nil {
		slog.Error("SQLiteStore AddKnowledgeEntry failed", "error", err, "id", e.ID)
		return fmt.Errorf("failed to save knowledge entry %s: %w", e.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetKnowledgeEntries() ([]models.KnowledgeEntry, error) {
	rows, err := s.db.Query(`SELECT id, question, answer, embedding FROM knowledge_entries`)
	if err != nil {
		slog.Error("SQLiteStore GetKnowledgeEntries query failed", "error", err)
		return nil, fmt.Errorf("failed to query knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []models.KnowledgeEntry
	for rows.Next() {
		var e models.KnowledgeEntry
		var embedding sql.NullString
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &embedding); err != nil {
			slog.Error("SQLiteStore GetKnowledgeEntries scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan knowledge entry row: %w", err)
		}
		e.Embedding = unmarshalEmbedding(embedding)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate knowledge entry rows: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) AddBehaviorEvent(e models.BehaviorEvent) error {
	payload, err := marshalJSONColumn(e.EventPayload)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO behavior_events (user_id, session_id, event_type, event_payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.UserID, nilIfEmpty(e.SessionID), e.EventType, payload, e.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddBehaviorEvent failed", "error", err, "userID", e.UserID, "type", e.EventType)
		return fmt.Errorf("failed to insert behavior event for %s: %w", e.UserID, err)
	}
	return nil
}

func (s *SQLiteStore) GetBehaviorEventsSince(userID string, since time.Time, limit int) ([]models.BehaviorEvent, error) {
	rows, err := s.db.Query(`SELECT id, user_id, session_id, event_type, event_payload, created_at FROM behavior_events
		WHERE user_id = ? AND created_at >= ? ORDER BY created_at DESC LIMIT ?`, userID, since, limit)
	if err != nil {
		slog.Error("SQLiteStore GetBehaviorEventsSince query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query behavior events: %w", err)
	}
	defer rows.Close()

	var events []models.BehaviorEvent
	for rows.Next() {
		var e models.BehaviorEvent
		var sessionID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &sessionID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			slog.Error("SQLiteStore GetBehaviorEventsSince scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan behavior event row: %w", err)
		}
		e.SessionID = sessionID.String
		e.EventPayload = unmarshalPayload(payload)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate behavior event rows: %w", err)
	}
	return events, nil
}

func (s *SQLiteStore) DeleteBehaviorEventsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM behavior_events WHERE created_at < ?`, cutoff)
	if err != nil {
		slog.Error("SQLiteStore DeleteBehaviorEventsBefore failed", "error", err)
		return 0, fmt.Errorf("failed to prune behavior events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) AddProactivePrompt(p models.ProactivePrompt) error {
	var engaged interface{}
	if p.Engaged != nil {
		engaged = *p.Engaged
	}
	_, err := s.db.Exec(`INSERT INTO proactive_prompts (id, user_id, session_id, classification, prompt, engaged, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, nilIfEmpty(p.SessionID), p.Classification, p.Prompt, engaged, p.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddProactivePrompt failed", "error", err, "id", p.ID)
		return fmt.Errorf("failed to insert proactive prompt %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetProactivePrompt(id string) (*models.ProactivePrompt, error) {
	row := s.db.QueryRow(`SELECT id, user_id, session_id, classification, prompt, engaged, created_at FROM proactive_prompts WHERE id = ?`, id)
	p, err := scanPromptColumns(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetProactivePrompt failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query proactive prompt %s: %w", id, err)
	}
	return &p, nil
}

func (s *SQLiteStore) GetLatestPromptSince(userID string, classification models.Classification, since time.Time) (*models.ProactivePrompt, error) {
	row := s.db.QueryRow(`SELECT id, user_id, session_id, classification, prompt, engaged, created_at FROM proactive_prompts
		WHERE user_id = ? AND classification = ? AND created_at >= ?
		ORDER BY created_at DESC LIMIT 1`, userID, classification, since)
	p, err := scanPromptColumns(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetLatestPromptSince failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query latest prompt: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) SetPromptEngagement(promptID string, engaged bool) error {
	_, err := s.db.Exec(`UPDATE proactive_prompts SET engaged = ? WHERE id = ?`, engaged, promptID)
	if err != nil {
		slog.Error("SQLiteStore SetPromptEngagement failed", "error", err, "promptID", promptID)
		return fmt.Errorf("failed to update engagement for %s: %w", promptID, err)
	}
	return nil
}

func (s *SQLiteStore) AddProduct(p models.Product) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO products (sku, title, blurb, price_cents) VALUES (?, ?, ?, ?)`,
		p.SKU, p.Title, p.Blurb, p.PriceCents)
	if err != nil {
		slog.Error("SQLiteStore AddProduct failed", "error", err, "sku", p.SKU)
		return fmt.Errorf("failed to save product %s: %w", p.SKU, err)
	}
	return nil
}

func (s *SQLiteStore) ListProducts(limit int) ([]models.Product, error) {
	rows, err := s.db.Query(`SELECT sku, title, blurb, price_cents FROM products LIMIT ?`, limit)
	if err != nil {
		slog.Error("SQLiteStore ListProducts query failed", "error", err)
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.SKU, &p.Title, &p.Blurb, &p.PriceCents); err != nil {
			slog.Error("SQLiteStore ListProducts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product rows: %w", err)
	}
	return products, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
