package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jamolkhon5/nexter/internal/models"
)

// Observer is called after every store mutation, outside the store lock.
type Observer func(ctx context.Context, projectID int64)

// MessageStore keeps the ordered conversation of every project.
type MessageStore struct {
	mu        sync.Mutex
	messages  map[int64][]models.Message
	observers []Observer
}

func NewMessageStore() *MessageStore {
	return &MessageStore{messages: make(map[int64][]models.Message)}
}

// Observe registers fn to run after each mutation.
func (s *MessageStore) Observe(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// List returns a copy of the project's messages in insertion order.
func (s *MessageStore) List(projectID int64) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages[projectID]...)
}

// Append adds m to the end of its project's conversation.
func (s *MessageStore) Append(ctx context.Context, m models.Message) models.Message {
	if m.ID == "" {
		m.ID = NewEphemeralID(m.Role)
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.messages[m.ProjectID] = append(s.messages[m.ProjectID], m)
	s.mu.Unlock()

	s.notify(ctx, m.ProjectID)
	return m
}

// AppendOnce appends m unless the project already holds a message with the same action.
func (s *MessageStore) AppendOnce(ctx context.Context, m models.Message) bool {
	s.mu.Lock()
	for _, existing := range s.messages[m.ProjectID] {
		if existing.Action != "" && existing.Action == m.Action {
			s.mu.Unlock()
			return false
		}
	}
	s.mu.Unlock()

	s.Append(ctx, m)
	return true
}

// Replace swaps the whole conversation of a project.
func (s *MessageStore) Replace(ctx context.Context, projectID int64, msgs []models.Message) {
	cp := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		m.ProjectID = projectID
		if m.ID == "" {
			m.ID = NewEphemeralID(m.Role)
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = time.Now()
		}
		cp = append(cp, m)
	}

	s.mu.Lock()
	s.messages[projectID] = cp
	s.mu.Unlock()

	s.notify(ctx, projectID)
}

// Update applies fn to the message with the given id. It reports false if the
// message no longer exists, which happens when the conversation was replaced.
func (s *MessageStore) Update(ctx context.Context, projectID int64, id string, fn func(*models.Message)) bool {
	s.mu.Lock()
	found := false
	msgs := s.messages[projectID]
	for i := range msgs {
		if msgs[i].ID == id {
			fn(&msgs[i])
			// fn may not move a message to another project
			msgs[i].ProjectID = projectID
			found = true
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.notify(ctx, projectID)
	}
	return found
}

// Remove deletes the message with the given id.
func (s *MessageStore) Remove(ctx context.Context, projectID int64, id string) bool {
	s.mu.Lock()
	found := false
	msgs := s.messages[projectID]
	for i := range msgs {
		if msgs[i].ID == id {
			s.messages[projectID] = append(msgs[:i:i], msgs[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.notify(ctx, projectID)
	}
	return found
}

func (s *MessageStore) notify(ctx context.Context, projectID int64) {
	s.mu.Lock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(ctx, projectID)
	}
}

// NewEphemeralID returns a locally generated, non-durable message id.
func NewEphemeralID(role models.Role) string {
	return models.EphemeralPrefix + string(role) + "-" + uuid.NewString()
}
