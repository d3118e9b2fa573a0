package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	pmodels "github.com/Jamolkhon5/nexter/internal/ai/project/models"
	"github.com/Jamolkhon5/nexter/internal/ai/project/prompts"
	"github.com/Jamolkhon5/nexter/internal/metrics"
	"github.com/Jamolkhon5/nexter/internal/models"
)

const DefaultHistoryLimit = 10

// RefineService speaks the START/ING/DONE refine protocol.
type RefineService interface {
	Start(ctx context.Context, projectID int64, title string) (string, error)
	Advance(ctx context.Context, answer string, doneProjectID int64) (pmodels.Reply, error)
}

// ChatService opens a streamed free-form chat response.
type ChatService interface {
	Stream(ctx context.Context, endpoint string, req models.ChatRequest) (io.ReadCloser, error)
}

// Settings are read on every call, so they may change while the process runs.
type Settings interface {
	UseLocalSimulation() bool
	ChatEndpoint() string
}

// MessageArchive persists finished conversation turns.
type MessageArchive interface {
	SaveMessage(ctx context.Context, m models.Message) (string, error)
	DeleteMessages(ctx context.Context, projectID int64) error
}

// MessageHistory is implemented by archives that can read a conversation back.
type MessageHistory interface {
	ListMessages(ctx context.Context, projectID int64) ([]models.Message, error)
}

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
	NoticeInfo    NoticeKind = "info"
)

// Listener is how the UI and persistence layers follow the conversation.
type Listener interface {
	OnProjectUpdate(ctx context.Context, project models.Project) error
	OnEditSurfaceRequested(project models.Project)
	OnEditSurfaceDismissed()
	OnNotify(kind NoticeKind, text string)
}

type Options struct {
	Refine   RefineService
	Chat     ChatService
	Settings Settings
	Listener Listener
	Archive  MessageArchive
	Metrics  *metrics.Metrics
	Log      zerolog.Logger

	UserRole     string
	HistoryLimit int
}

// Snapshot is what a client renders.
type Snapshot struct {
	SelectedProjectID int64            `json:"selected_project_id"`
	Generating        bool             `json:"generating"`
	Messages          []models.Message `json:"messages"`
}

// Organizer coordinates the organize flow of one chat session.
// Remote calls run without holding any lock; before a result is committed the
// organizer checks that the selected project is still the one the call was made for.
// Refine calls are detached from the caller's cancellation: the session outlives
// the request, and the refine HTTP client bounds each call.
type Organizer struct {
	mu         sync.Mutex
	selected   int64
	generating bool
	projects   map[int64]models.Project

	store    *MessageStore
	registry *Registry
	autosave *AutoSaveTrigger
	script   Script
	intents  *IntentAnalyzer
	synth    *Synthesizer
	stream   *StreamConsumer

	refine   RefineService
	chat     ChatService
	settings Settings
	listener Listener
	archive  MessageArchive
	metrics  *metrics.Metrics
	log      zerolog.Logger

	userRole     string
	historyLimit int
}

func NewOrganizer(opts Options) *Organizer {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}
	if opts.Listener == nil {
		opts.Listener = nopListener{}
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}

	o := &Organizer{
		selected:     models.GlobalProjectID,
		projects:     make(map[int64]models.Project),
		store:        NewMessageStore(),
		registry:     NewRegistry(),
		intents:      NewIntentAnalyzer(),
		synth:        NewSynthesizer(opts.Log),
		stream:       NewStreamConsumer(),
		refine:       opts.Refine,
		chat:         opts.Chat,
		settings:     opts.Settings,
		listener:     opts.Listener,
		archive:      opts.Archive,
		metrics:      opts.Metrics,
		log:          opts.Log.With().Str("component", "organizer").Logger(),
		userRole:     opts.UserRole,
		historyLimit: opts.HistoryLimit,
	}
	o.autosave = NewAutoSaveTrigger(o.store, o.registry, o.saveOrganizing, opts.Log)
	o.store.Replace(context.Background(), models.GlobalProjectID, []models.Message{o.welcome(models.GlobalProjectID, "")})
	return o
}

// Snapshot returns the selected project's conversation.
func (o *Organizer) Snapshot() Snapshot {
	o.mu.Lock()
	selected, generating := o.selected, o.generating
	o.mu.Unlock()

	return Snapshot{
		SelectedProjectID: selected,
		Generating:        generating,
		Messages:          o.store.List(selected),
	}
}

func (o *Organizer) SelectedProjectID() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selected
}

func (o *Organizer) Generating() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generating
}

// Project returns the assistant's latest view of a project record.
func (o *Organizer) Project(id int64) (models.Project, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.projects[id]
	return p.Clone(), ok
}

// Select switches the conversation to project, or to the global conversation when project is nil.
func (o *Organizer) Select(ctx context.Context, project *models.Project) {
	if project == nil {
		o.setSelected(models.GlobalProjectID)
		o.store.Replace(ctx, models.GlobalProjectID, []models.Message{o.welcome(models.GlobalProjectID, "")})
		return
	}

	p := *project
	o.remember(p)
	o.setSelected(p.ID)

	if o.registry.IsOrganizing(p.ID) && len(o.store.List(p.ID)) > 0 {
		return
	}

	if archived := o.loadArchived(ctx, p.ID); len(archived) > 0 {
		if o.stale(p.ID, "select") {
			return
		}
		o.store.Replace(ctx, p.ID, archived)
		return
	}

	msg := o.fetchWelcome(ctx, p)
	if o.stale(p.ID, "select") {
		return
	}
	o.store.Replace(ctx, p.ID, []models.Message{msg})
}

func (o *Organizer) loadArchived(ctx context.Context, projectID int64) []models.Message {
	history, ok := o.archive.(MessageHistory)
	if !ok {
		return nil
	}
	msgs, err := history.ListMessages(ctx, projectID)
	if err != nil {
		o.log.Error().Err(err).Int64("project_id", projectID).Msg("failed to load archived messages")
		o.notify(NoticeError, prompts.NoticeLoadFailed)
		return nil
	}
	return msgs
}

// Organize starts (or resumes) the organize flow for project.
func (o *Organizer) Organize(ctx context.Context, project models.Project) {
	o.listener.OnEditSurfaceDismissed()
	o.remember(project)
	o.setSelected(project.ID)
	o.registry.ResetQuestionIndex(project.ID)
	o.registry.ClearSaved(project.ID)

	if o.registry.IsOrganizing(project.ID) {
		greeting, ok := o.registry.Greeting(project.ID)
		if !ok {
			greeting = o.welcome(project.ID, project.Title)
		}
		greeting.ID, greeting.Timestamp = "", time.Time{}
		o.store.Replace(ctx, project.ID, []models.Message{greeting})
		o.notify(NoticeSuccess, prompts.NoticeConversationKept)
		return
	}

	if !o.registry.BeginStart(project.ID) {
		o.log.Debug().Int64("project_id", project.ID).Msg("organize already starting")
		return
	}
	defer o.registry.EndStart(project.ID)

	o.setGenerating(true)
	defer o.setGenerating(false)

	mode := ModeRemote
	fellBack := false
	var content string

	if o.settings.UseLocalSimulation() {
		mode = ModeLocal
		content = o.script.Prompt(0, project.Title).Text
	} else {
		text, err := o.callStart(ctx, project)
		if err != nil {
			o.log.Warn().Err(err).Int64("project_id", project.ID).Msg("refine start failed, falling back to the local script")
			o.metrics.FallbackActivationsTotal.Inc()
			mode = ModeLocal
			fellBack = true
			content = o.script.Prompt(0, project.Title).Text
		} else {
			content = text
		}
	}

	if o.stale(project.ID, "organize") {
		return
	}

	greeting := models.Message{
		ID:        NewEphemeralID(models.RoleAI),
		ProjectID: project.ID,
		Role:      models.RoleAI,
		Content:   content,
		Timestamp: time.Now(),
	}
	o.store.Replace(ctx, project.ID, []models.Message{greeting})
	o.registry.Register(project.ID, mode, greeting)

	if fellBack {
		o.notify(NoticeInfo, prompts.NoticeLocalMode)
	}
	o.notify(NoticeSuccess, prompts.NoticeOrganizeStarted)
}

// Send processes one user reply for the selected project.
func (o *Organizer) Send(ctx context.Context, input string) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ErrEmptyInput
	}

	projectID := o.SelectedProjectID()
	history := o.store.List(projectID)
	user := o.store.Append(ctx, models.Message{
		ProjectID: projectID,
		Role:      models.RoleUser,
		Content:   trimmed,
	})

	if projectID == models.GlobalProjectID {
		o.store.AppendOnce(ctx, models.Message{
			ProjectID: models.GlobalProjectID,
			Role:      models.RoleAI,
			Content:   prompts.RegisterProjectMessage,
			Action:    models.ActionRegisterProject,
		})
		return nil
	}

	mode, organizing := o.registry.Mode(projectID)
	switch {
	case organizing && (mode == ModeLocal || o.settings.UseLocalSimulation()):
		o.advanceScript(context.WithoutCancel(ctx), projectID)
	case organizing:
		// the reply and its save belong to the session, not to this request
		o.advanceRemote(context.WithoutCancel(ctx), projectID, trimmed)
	default:
		o.streamReply(ctx, projectID, history, user)
	}
	return nil
}

// Reset clears the selected conversation and shows a fresh welcome.
func (o *Organizer) Reset(ctx context.Context) {
	projectID := o.SelectedProjectID()
	if projectID == models.GlobalProjectID {
		o.store.Replace(ctx, models.GlobalProjectID, []models.Message{o.welcome(models.GlobalProjectID, "")})
		o.notify(NoticeSuccess, prompts.NoticeResetDone)
		return
	}

	project, ok := o.Project(projectID)
	if !ok {
		project = models.Project{ID: projectID}
	}

	msg := o.fetchWelcome(ctx, project)
	if o.stale(projectID, "reset") {
		return
	}

	if o.archive != nil {
		if err := o.archive.DeleteMessages(ctx, projectID); err != nil {
			o.log.Warn().Err(err).Int64("project_id", projectID).Msg("failed to delete archived messages")
		}
	}

	o.store.Replace(ctx, projectID, []models.Message{msg})
	o.registry.ClearSaved(projectID)
	o.notify(NoticeSuccess, prompts.NoticeResetDone)
}

func (o *Organizer) advanceScript(ctx context.Context, projectID int64) {
	project, _ := o.Project(projectID)
	step := o.registry.AdvanceQuestion(projectID, o.script.Len())
	prompt := o.script.Prompt(step, project.Title)

	o.store.Append(ctx, models.Message{
		ProjectID:    projectID,
		Role:         models.RoleAI,
		Content:      prompt.Text,
		IsOrganizing: prompt.IsOrganizing,
	})
}

func (o *Organizer) advanceRemote(ctx context.Context, projectID int64, answer string) {
	o.setGenerating(true)
	defer o.setGenerating(false)

	pending := o.store.Append(ctx, models.Message{ProjectID: projectID, Role: models.RoleAI})

	var doneProjectID int64
	if o.intents.IsConfirmation(answer) && o.registry.IsOrganizing(projectID) {
		doneProjectID = projectID
	}

	phase := "ing"
	if doneProjectID != 0 {
		phase = "done"
	}

	started := time.Now()
	reply, err := o.refine.Advance(ctx, answer, doneProjectID)
	o.metrics.ObserveRemoteCall(phase, time.Since(started).Seconds(), err)

	if o.stale(projectID, phase) {
		o.store.Remove(ctx, projectID, pending.ID)
		return
	}

	if err != nil {
		o.log.Error().Err(err).Int64("project_id", projectID).Str("phase", phase).Msg("refine advance failed")
		o.notify(NoticeError, prompts.NoticeSendFailed)
		o.setContent(ctx, projectID, pending.ID, prompts.Failure(err), false)
		return
	}

	if !reply.Final() {
		o.setContent(ctx, projectID, pending.ID, reply.Message, false)
		return
	}

	project, ok := o.Project(projectID)
	if !ok {
		project = models.Project{ID: projectID}
	}
	merged := o.synth.Merge(project, reply.Project)
	o.remember(merged)

	if err := o.persist(ctx, merged); err != nil {
		o.notify(NoticeInfo, prompts.NoticeSavedLocally)
	}

	content := reply.Message
	if strings.TrimSpace(content) == "" {
		content = prompts.DoneFallbackMessage
	}
	o.setContent(ctx, projectID, pending.ID, content, true)
}

func (o *Organizer) streamReply(ctx context.Context, projectID int64, history []models.Message, user models.Message) {
	o.setGenerating(true)
	defer o.setGenerating(false)

	pending := o.store.Append(ctx, models.Message{ProjectID: projectID, Role: models.RoleAI})

	req := models.ChatRequest{
		ProjectID: projectID,
		UserRole:  o.userRole,
		History:   historyPayload(append(history, user), o.historyLimit),
		Input:     user.Content,
	}

	started := time.Now()
	content, err := o.consumeChat(ctx, projectID, pending.ID, req)
	o.metrics.ObserveRemoteCall("chat", time.Since(started).Seconds(), err)

	if o.stale(projectID, "chat") {
		o.store.Remove(ctx, projectID, pending.ID)
		return
	}

	if err != nil && ctx.Err() != nil {
		o.metrics.CancelledStreamsTotal.Inc()
		o.log.Info().Int64("project_id", projectID).Msg("chat stream abandoned by the caller")
		if content == "" {
			o.store.Remove(ctx, projectID, pending.ID)
			return
		}
		o.setContent(ctx, projectID, pending.ID, content, false)
		return
	}

	if err != nil {
		o.log.Error().Err(err).Int64("project_id", projectID).Msg("chat stream failed")
		o.notify(NoticeError, prompts.NoticeSendFailed)
		o.setContent(ctx, projectID, pending.ID, prompts.Apology, false)
		return
	}

	if content != "" {
		o.store.Update(ctx, projectID, pending.ID, func(m *models.Message) {
			m.Content = content
		})
	}

	o.archiveTurn(ctx, projectID, user.ID, pending.ID)
}

func (o *Organizer) consumeChat(ctx context.Context, projectID int64, pendingID string, req models.ChatRequest) (string, error) {
	body, err := o.chat.Stream(ctx, o.settings.ChatEndpoint(), req)
	if err != nil {
		return "", err
	}
	defer body.Close()

	first := true
	return o.stream.Consume(ctx, body, func(partial string) {
		if first {
			first = false
			o.setGenerating(false)
		}
		o.metrics.StreamChunksTotal.Inc()
		if o.SelectedProjectID() != projectID {
			return
		}
		o.store.Update(ctx, projectID, pendingID, func(m *models.Message) {
			m.Content = partial
			m.Timestamp = time.Now()
		})
	})
}

// archiveTurn persists the user message and the reply, swapping their
// ephemeral ids for durable ones.
func (o *Organizer) archiveTurn(ctx context.Context, projectID int64, ids ...string) {
	if o.archive == nil {
		return
	}

	msgs := o.store.List(projectID)
	for _, id := range ids {
		for _, m := range msgs {
			if m.ID != id {
				continue
			}
			durableID, err := o.archive.SaveMessage(ctx, m)
			if err != nil {
				o.log.Error().Err(err).Int64("project_id", projectID).Msg("failed to archive message")
				o.notify(NoticeError, prompts.NoticeArchiveFailed)
				return
			}
			o.store.Update(ctx, projectID, id, func(m *models.Message) {
				m.ID = durableID
			})
		}
	}
}

// saveOrganizing is the auto-save path, run once per finished organize cycle.
func (o *Organizer) saveOrganizing(ctx context.Context, projectID int64) {
	project, ok := o.Project(projectID)
	if !ok {
		o.log.Warn().Int64("project_id", projectID).Msg("no project record to save")
		return
	}

	msgs := o.store.List(projectID)
	if len(msgs) == 0 {
		o.notify(NoticeError, prompts.NoticeNoHistory)
		return
	}

	mode, _ := o.registry.Mode(projectID)
	if mode != ModeLocal && !o.settings.UseLocalSimulation() {
		// the DONE reply was already merged
		o.metrics.AutoSavesTotal.WithLabelValues(string(ModeRemote), "success").Inc()
		o.listener.OnEditSurfaceRequested(project)
		o.notify(NoticeSuccess, prompts.NoticeProjectUpdated)
		return
	}

	answers := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == models.RoleUser {
			answers = append(answers, m.Content)
		}
	}

	updated := o.synth.MergeAnswers(project, answers)
	o.remember(updated)

	if err := o.persist(ctx, updated); err != nil {
		o.metrics.AutoSavesTotal.WithLabelValues(string(ModeLocal), "local_only").Inc()
		o.notify(NoticeInfo, prompts.NoticeAppliedLocally)
	} else {
		o.metrics.AutoSavesTotal.WithLabelValues(string(ModeLocal), "success").Inc()
		o.notify(NoticeSuccess, prompts.NoticeAnswersApplied)
	}

	// the closing message already holds the guard, so this append does not save again
	o.store.Append(ctx, models.Message{
		ProjectID: projectID,
		Role:      models.RoleAI,
		Content:   prompts.ProjectSummary(updated),
		Action:    models.ActionProjectSummary,
	})
	o.listener.OnEditSurfaceRequested(updated)
}

func (o *Organizer) persist(ctx context.Context, project models.Project) error {
	if err := o.listener.OnProjectUpdate(ctx, project.Clone()); err != nil {
		perr := &PersistenceError{ProjectID: project.ID, Err: err}
		o.log.Error().Err(perr).Msg("project update rejected, keeping the local copy")
		return perr
	}
	return nil
}

func (o *Organizer) callStart(ctx context.Context, project models.Project) (string, error) {
	started := time.Now()
	text, err := o.refine.Start(context.WithoutCancel(ctx), project.ID, project.Title)
	o.metrics.ObserveRemoteCall("start", time.Since(started).Seconds(), err)
	return text, err
}

// fetchWelcome asks the refine service for a greeting, falling back to the template.
func (o *Organizer) fetchWelcome(ctx context.Context, project models.Project) models.Message {
	if o.settings.UseLocalSimulation() {
		return o.welcome(project.ID, project.Title)
	}

	text, err := o.callStart(ctx, project)
	if err != nil {
		o.log.Warn().Err(err).Int64("project_id", project.ID).Msg("failed to load welcome message")
		return o.welcome(project.ID, project.Title)
	}

	msg := o.welcome(project.ID, project.Title)
	msg.Content = text
	return msg
}

func (o *Organizer) welcome(projectID int64, title string) models.Message {
	return models.Message{
		ID:        NewEphemeralID(models.RoleAI),
		ProjectID: projectID,
		Role:      models.RoleAI,
		Content:   prompts.ProjectWelcome(title),
		Timestamp: time.Now(),
	}
}

func (o *Organizer) setContent(ctx context.Context, projectID int64, id, content string, organizing bool) {
	o.store.Update(ctx, projectID, id, func(m *models.Message) {
		m.Content = content
		m.Timestamp = time.Now()
		m.IsOrganizing = organizing
	})
}

// stale reports whether the selection moved away from projectID while a call was in flight.
func (o *Organizer) stale(projectID int64, operation string) bool {
	if o.SelectedProjectID() == projectID {
		return false
	}
	o.metrics.StaleResultsTotal.WithLabelValues(operation).Inc()
	o.log.Debug().Int64("project_id", projectID).Str("operation", operation).Msg("discarding stale result")
	return true
}

func (o *Organizer) notify(kind NoticeKind, text string) {
	o.listener.OnNotify(kind, text)
}

func (o *Organizer) remember(p models.Project) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.projects[p.ID] = p.Clone()
}

func (o *Organizer) setSelected(projectID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selected = projectID
}

func (o *Organizer) setGenerating(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.generating = v
}

func historyPayload(msgs []models.Message, limit int) []models.HistoryItem {
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.HistoryItem, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, models.HistoryItem{Role: m.Role, Content: m.Content})
	}
	return out
}

type nopListener struct{}

func (nopListener) OnProjectUpdate(context.Context, models.Project) error { return nil }
func (nopListener) OnEditSurfaceRequested(models.Project)                 {}
func (nopListener) OnEditSurfaceDismissed()                               {}
func (nopListener) OnNotify(NoticeKind, string)                           {}
