package models

import (
	"strings"
	"time"
)

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleAI   Role = "ai"
	RoleUser Role = "user"
)

// ActionRegisterProject asks the client to offer project registration.
const ActionRegisterProject = "register_project"

// ActionProjectSummary marks the recap posted after a local organize flow was saved.
const ActionProjectSummary = "project_summary"

// GlobalProjectID is the project-less conversation.
const GlobalProjectID int64 = 0

// EphemeralPrefix marks ids that were generated locally and never persisted.
const EphemeralPrefix = "tmp-"

// Message is a single conversation turn.
type Message struct {
	ID           string    `json:"id"`
	ProjectID    int64     `json:"project_id"`
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	IsOrganizing bool      `json:"is_organizing,omitempty"`
	Action       string    `json:"action,omitempty"`
}

// IsDurable reports whether the id was issued by the message archive.
func (m Message) IsDurable() bool {
	return m.ID != "" && !strings.HasPrefix(m.ID, EphemeralPrefix)
}

// HistoryItem is the role/content pair sent to the chat service.
type HistoryItem struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of a plain (streamed) chat call.
type ChatRequest struct {
	ProjectID int64         `json:"projectId"`
	UserRole  string        `json:"userRole"`
	History   []HistoryItem `json:"history"`
	Input     string        `json:"input"`
}
