package service

import (
	"context"
	"sync"
	"time"

	"github.com/Jamolkhon5/nexter/internal/models"
)

// ProjectStore is the persistence collaborator that owns project records.
type ProjectStore interface {
	GetProject(ctx context.Context, id int64) (models.Project, error)
	UpdateProject(ctx context.Context, project models.Project) error
}

type EventType string

const (
	EventNotify            EventType = "notify"
	EventProjectUpdated    EventType = "project_updated"
	EventEditSurfaceOpened EventType = "edit_surface_requested"
	EventEditSurfaceClosed EventType = "edit_surface_dismissed"
)

// Event is one UI-facing side effect, queued until the client polls for it.
type Event struct {
	Type    EventType       `json:"type"`
	Kind    NoticeKind      `json:"kind,omitempty"`
	Text    string          `json:"text,omitempty"`
	Project *models.Project `json:"project,omitempty"`
	At      time.Time       `json:"at"`
}

// Recorder is the Listener used by HTTP sessions: it writes project updates
// through to the ProjectStore and queues everything else for the client.
type Recorder struct {
	mu     sync.Mutex
	store  ProjectStore
	events []Event
}

func NewRecorder(store ProjectStore) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) OnProjectUpdate(ctx context.Context, project models.Project) error {
	if r.store != nil {
		if err := r.store.UpdateProject(ctx, project); err != nil {
			return err
		}
	}
	r.push(Event{Type: EventProjectUpdated, Project: &project})
	return nil
}

func (r *Recorder) OnEditSurfaceRequested(project models.Project) {
	r.push(Event{Type: EventEditSurfaceOpened, Project: &project})
}

func (r *Recorder) OnEditSurfaceDismissed() {
	r.push(Event{Type: EventEditSurfaceClosed})
}

func (r *Recorder) OnNotify(kind NoticeKind, text string) {
	r.push(Event{Type: EventNotify, Kind: kind, Text: text})
}

// Drain returns the queued events and empties the queue.
func (r *Recorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func (r *Recorder) push(e Event) {
	e.At = time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}
