package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Store wraps the Postgres connection used by the assistant.
type Store struct {
	DB *sql.DB
}

// Message roles recognised by the conversation log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input to a store operation.
	ErrValidation = errors.New("validation failed")
)

// ValidRole reports whether role is one of the recognised message roles.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Service is a catalog entry: a known citizen-service intent with a canned
// response. Complaint records share the same shape and are tagged with
// IsComplaint.
type Service struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Keywords    []string  `json:"keywords"`
	Response    string    `json:"response"`
	IsComplaint bool      `json:"is_complaint"`
	CreatedAt   time.Time `json:"created_at"`
}

// Conversation groups the ordered messages of one chat session.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a single role-tagged turn in a conversation. Append-only.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// Service catalog operations

// CreateService inserts a new catalog entry and returns its id.
func (s *Store) CreateService(ctx context.Context, name, description string, keywords []string, response string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: service name required", ErrValidation)
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO services (name, description, keywords, response, is_complaint)
VALUES ($1,$2,$3,$4,false)
RETURNING id`, name, description, pq.Array(keywords), response).Scan(&id)
	return id, err
}

// ListServices returns the seeded catalog in insertion order. Complaint
// records are excluded; they share the table but are not matchable intents.
func (s *Store) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, name, description, keywords, response, is_complaint, created_at
FROM services
WHERE is_complaint = false
ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Service
	for rows.Next() {
		var svc Service
		var keywords pq.StringArray
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Description, &keywords, &svc.Response, &svc.IsComplaint, &svc.CreatedAt); err != nil {
			return nil, err
		}
		svc.Keywords = keywords
		out = append(out, svc)
	}
	return out, rows.Err()
}

// HasService reports whether a catalog entry with the given name exists.
func (s *Store) HasService(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM services WHERE name=$1 AND is_complaint=false`, name).Scan(&n)
	return n > 0, err
}

// CreateComplaint records a filed complaint as a service-shaped row tagged
// is_complaint and returns its id as the citizen-facing reference.
func (s *Store) CreateComplaint(ctx context.Context, serviceName, problem string) (string, error) {
	if strings.TrimSpace(serviceName) == "" || strings.TrimSpace(problem) == "" {
		return "", fmt.Errorf("%w: service name and problem description required", ErrValidation)
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO services (name, description, keywords, response, is_complaint)
VALUES ($1,$2,$3,$4,true)
RETURNING id`, "Complaint: "+serviceName, problem, pq.Array([]string{}), "").Scan(&id)
	return id, err
}

// Conversation operations

// CreateConversation starts a new conversation for the given user.
func (s *Store) CreateConversation(ctx context.Context, userID string) (Conversation, error) {
	var conv Conversation
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO conversations (user_id)
VALUES ($1)
RETURNING id, user_id, created_at`, userID).Scan(&conv.ID, &conv.UserID, &conv.CreatedAt)
	return conv, err
}

// GetConversation fetches a conversation by id, returning ErrNotFound when an
// explicit id does not exist (callers create fresh conversations only when no
// id was supplied).
func (s *Store) GetConversation(ctx context.Context, id string) (Conversation, error) {
	var conv Conversation
	err := s.DB.QueryRowContext(ctx, `
SELECT id, user_id, created_at FROM conversations WHERE id=$1`, id).Scan(&conv.ID, &conv.UserID, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, fmt.Errorf("%w: conversation %s", ErrNotFound, id)
	}
	return conv, err
}

// Message operations

// AppendMessage persists one message with a server-assigned timestamp.
// Messages are never edited or removed afterwards.
func (s *Store) AppendMessage(ctx context.Context, conversationID, role, content string) (Message, error) {
	if !ValidRole(role) {
		return Message{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, fmt.Errorf("%w: message content empty", ErrValidation)
	}
	msg := Message{ConversationID: conversationID, Role: role, Content: content}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO messages (conversation_id, role, content)
VALUES ($1,$2,$3)
RETURNING id, created_at`, conversationID, role, content).Scan(&msg.ID, &msg.CreatedAt)
	return msg, err
}

// LoadHistory returns up to limit most recent messages of a conversation in
// chronological (oldest-first) order.
func (s *Store) LoadHistory(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: history limit must be > 0", ErrValidation)
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, conversation_id, role, content, created_at
FROM messages
WHERE conversation_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// query is newest-first for the LIMIT; callers need oldest-first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
