package models

import "time"

// Message roles. Tool messages only ever live inside a single turn's
// conversation; they are never persisted.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a session's append-only message log.
// Sources is non-nil only on assistant messages whose turn ran at least
// one successful search.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Sources   []Source  `json:"sources"`
}

// Session is a snapshot of one conversation. Messages are ordered and
// immutable once persisted; a turn operates on the snapshot it loaded.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	SystemPrompt string    `json:"system_prompt"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
