package service

import (
	"sync"

	"github.com/Jamolkhon5/nexter/internal/models"
)

// FlowMode tells which engine drives a project's organize flow.
type FlowMode string

const (
	ModeRemote FlowMode = "remote"
	ModeLocal  FlowMode = "local"
)

type flowState struct {
	mode     FlowMode
	greeting models.Message
}

// Registry is the organize flow state of one session: which projects have
// started organizing, their script position, and which have already auto-saved.
type Registry struct {
	mu            sync.Mutex
	flows         map[int64]flowState
	starting      map[int64]struct{}
	questionIndex map[int64]int
	saved         map[int64]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		flows:         make(map[int64]flowState),
		starting:      make(map[int64]struct{}),
		questionIndex: make(map[int64]int),
		saved:         make(map[int64]struct{}),
	}
}

// Register marks the project as organizing. Entries are never removed within a session.
func (r *Registry) Register(projectID int64, mode FlowMode, greeting models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[projectID] = flowState{mode: mode, greeting: greeting}
}

// BeginStart claims the START call for a project that is not organizing yet.
// It returns false if the project is already registered or another START is in flight.
func (r *Registry) BeginStart(projectID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flows[projectID]; ok {
		return false
	}
	if _, ok := r.starting[projectID]; ok {
		return false
	}
	r.starting[projectID] = struct{}{}
	return true
}

// EndStart releases the claim taken by BeginStart.
func (r *Registry) EndStart(projectID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.starting, projectID)
}

// IsOrganizing reports whether the project has ever started an organize flow.
func (r *Registry) IsOrganizing(projectID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.flows[projectID]
	return ok
}

// Mode returns the flow mode of a registered project.
func (r *Registry) Mode(projectID int64) (FlowMode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flows[projectID]
	return f.mode, ok
}

// Greeting returns the last greeting shown for the project.
func (r *Registry) Greeting(projectID int64) (models.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flows[projectID]
	return f.greeting, ok && f.greeting.Content != ""
}

// QuestionIndex returns the current script step.
func (r *Registry) QuestionIndex(projectID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.questionIndex[projectID]
}

// ResetQuestionIndex moves the script back to step 0.
func (r *Registry) ResetQuestionIndex(projectID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questionIndex[projectID] = 0
}

// AdvanceQuestion moves the script one step forward, capped at limit, and returns the new step.
func (r *Registry) AdvanceQuestion(projectID int64, limit int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.questionIndex[projectID] + 1
	if next > limit {
		next = limit
	}
	r.questionIndex[projectID] = next
	return next
}

// MarkSaved sets the auto-save guard. It returns false if the guard was already set.
func (r *Registry) MarkSaved(projectID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.saved[projectID]; ok {
		return false
	}
	r.saved[projectID] = struct{}{}
	return true
}

// Saved reports whether the auto-save guard is set.
func (r *Registry) Saved(projectID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.saved[projectID]
	return ok
}

// ClearSaved allows one more auto-save for the project.
func (r *Registry) ClearSaved(projectID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.saved, projectID)
}
