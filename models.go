package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username       string         `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"-"`
	EmailValidated bool           `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	LoginAttempts  int            `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time     `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]interface{})
	}
	u.Metadata[key] = val
	return u
}

// MessageType classifies the events that travel over the relay.
type MessageType = string

const (
	// MessageTypeChat is a user authored message
	MessageTypeChat MessageType = "CHAT"
	// MessageTypeJoin announces a principal binding to a connection
	MessageTypeJoin MessageType = "JOIN"
	// MessageTypeLeave announces a connection teardown
	MessageTypeLeave MessageType = "LEAVE"
)

// ChatMessage is the persisted chat event model. Sender always holds the
// principal identifier the server bound to the originating connection.
type ChatMessage struct {
	bun.BaseModel `bun:"table:chat_messages,alias:msg"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Type          string     `bun:"type,notnull" json:"type"`
	Sender        string     `bun:"sender,notnull" json:"sender"`
	Content       string     `bun:"content" json:"content,omitempty"`
	SentAt        *time.Time `bun:"sent_at,nullzero,default:current_timestamp" json:"sent_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// ValidMessageType reports whether t names a known relay event type.
func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeChat, MessageTypeJoin, MessageTypeLeave:
		return true
	}
	return false
}
