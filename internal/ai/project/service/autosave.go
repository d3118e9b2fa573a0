package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Jamolkhon5/nexter/internal/models"
)

// SaveFunc runs the save path of a finished organize flow.
type SaveFunc func(ctx context.Context, projectID int64)

// AutoSaveTrigger watches the message store and fires the save path at most
// once per project and organize cycle.
type AutoSaveTrigger struct {
	store    *MessageStore
	registry *Registry
	save     SaveFunc
	log      zerolog.Logger
}

func NewAutoSaveTrigger(store *MessageStore, registry *Registry, save SaveFunc, log zerolog.Logger) *AutoSaveTrigger {
	t := &AutoSaveTrigger{
		store:    store,
		registry: registry,
		save:     save,
		log:      log.With().Str("component", "autosave").Logger(),
	}
	store.Observe(t.Check)
	return t
}

// Check scans the project's conversation from the newest message backwards.
func (t *AutoSaveTrigger) Check(ctx context.Context, projectID int64) {
	msgs := t.store.List(projectID)

	var found *models.Message
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role == models.RoleAI && m.IsOrganizing && t.registry.IsOrganizing(m.ProjectID) {
			found = &m
			break
		}
	}
	if found == nil {
		return
	}

	// guard is set before the save path runs, so re-entrant store mutations see it
	if !t.registry.MarkSaved(found.ProjectID) {
		return
	}

	t.log.Info().Int64("project_id", found.ProjectID).Str("message_id", found.ID).Msg("organize flow finished, saving")
	t.save(ctx, found.ProjectID)
}
