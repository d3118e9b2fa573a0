package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamolkhon5/nexter/internal/ai/project/prompts"
	"github.com/Jamolkhon5/nexter/internal/metrics"
	"github.com/Jamolkhon5/nexter/internal/models"
)

type memoryProjects struct {
	projects  map[int64]models.Project
	updateErr error
}

func (m *memoryProjects) GetProject(ctx context.Context, id int64) (models.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return models.Project{}, errors.New("not found")
	}
	return p, nil
}

func (m *memoryProjects) UpdateProject(ctx context.Context, p models.Project) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.projects[p.ID] = p
	return nil
}

func TestSessions_Lifecycle(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	var refineSessions []string

	sessions := NewSessions(SessionOptions{
		NewRefine: func(sessionID string) RefineService {
			refineSessions = append(refineSessions, sessionID)
			return &fakeRefine{}
		},
		Chat:     &fakeChat{},
		Settings: &fakeSettings{},
		Projects: &memoryProjects{projects: map[int64]models.Project{7: campaign}},
		Metrics:  m,
		Log:      zerolog.Nop(),
	})

	a := sessions.Create()
	b := sessions.Create()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, []string{a.ID, b.ID}, refineSessions)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsActive))

	got, err := sessions.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)

	p, err := sessions.LoadProject(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Campaign X", p.Title)

	require.NoError(t, sessions.Close(a.ID))
	_, err = sessions.Get(a.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, sessions.Close(a.ID), ErrSessionNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
}

func TestSessions_LocalFlowWritesThrough(t *testing.T) {
	settings := &fakeSettings{}
	settings.local.Store(true)
	projects := &memoryProjects{projects: map[int64]models.Project{7: campaign}}

	sessions := NewSessions(SessionOptions{
		NewRefine: func(string) RefineService { return &fakeRefine{} },
		Chat:      &fakeChat{},
		Settings:  settings,
		Projects:  projects,
		Log:       zerolog.Nop(),
	})
	sess := sessions.Create()
	ctx := context.Background()

	sess.Organizer.Organize(ctx, campaign)
	for _, r := range []string{"goal", "role", "wins", "notes"} {
		require.NoError(t, sess.Organizer.Send(ctx, r))
	}

	assert.Equal(t, "goal", projects.projects[7].Summary)

	events := sess.Events.Drain()
	var types []EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []EventType{
		EventEditSurfaceClosed,
		EventNotify,
		EventProjectUpdated,
		EventNotify,
		EventEditSurfaceOpened,
	}, types)
	assert.Equal(t, prompts.NoticeAnswersApplied, events[3].Text)
	assert.Equal(t, NoticeSuccess, events[3].Kind)

	assert.Empty(t, sess.Events.Drain())
}

func TestRecorder_UpdateFailure(t *testing.T) {
	projects := &memoryProjects{projects: map[int64]models.Project{}, updateErr: errors.New("read only")}
	r := NewRecorder(projects)

	err := r.OnProjectUpdate(context.Background(), campaign)
	require.Error(t, err)
	assert.Empty(t, r.Drain())
}
