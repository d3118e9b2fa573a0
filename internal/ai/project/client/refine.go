package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Jamolkhon5/nexter/internal/ai/project/models"
)

// SessionHeader lets the refine server keep dialogue state per chat session.
const SessionHeader = "X-Session-Id"

const maxErrorBody = 1024

// RefineClient is a thin transport for the START/ING/DONE refine protocol.
// It never decides the phase itself: the caller picks it by choosing which fields to send.
type RefineClient struct {
	endpoint  string
	sessionID string
	http      *http.Client
	log       zerolog.Logger
}

func NewRefineClient(endpoint string, httpClient *http.Client, log zerolog.Logger) *RefineClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RefineClient{
		endpoint: endpoint,
		http:     httpClient,
		log:      log.With().Str("component", "refine_client").Logger(),
	}
}

// WithSession returns a copy that tags every request with the given session id.
func (c *RefineClient) WithSession(sessionID string) *RefineClient {
	cp := *c
	cp.sessionID = sessionID
	cp.log = c.log.With().Str("session_id", sessionID).Logger()
	return &cp
}

// Start opens the dialogue for a project and returns the greeting.
func (c *RefineClient) Start(ctx context.Context, projectID int64, title string) (string, error) {
	reply, err := c.post(ctx, models.RefineRequest{ProjectID: projectID, State: models.StateStart})
	if err != nil {
		return "", err
	}
	if reply.Message == "" {
		return "", &ProtocolShapeError{Body: fmt.Sprintf("start reply for %q has no message", title)}
	}
	return reply.Message, nil
}

// Advance sends the latest answer. A non-zero doneProjectID asks the server to finalize.
func (c *RefineClient) Advance(ctx context.Context, answer string, doneProjectID int64) (models.Reply, error) {
	return c.post(ctx, models.RefineRequest{Answer: answer, ProjectID: doneProjectID})
}

func (c *RefineClient) post(ctx context.Context, body models.RefineRequest) (models.Reply, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return models.Reply{}, fmt.Errorf("marshal refine request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return models.Reply{}, fmt.Errorf("create refine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionID != "" {
		req.Header.Set(SessionHeader, c.sessionID)
	}

	c.log.Debug().Str("phase", body.Phase()).Int64("project_id", body.ProjectID).Msg("refine request")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Reply{}, &TransportError{Endpoint: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return models.Reply{}, &TransportError{
			Endpoint:   c.endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(errBody),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Reply{}, &TransportError{Endpoint: c.endpoint, Err: fmt.Errorf("read body: %w", err)}
	}

	reply, err := decodeReply(data)
	if err != nil {
		return models.Reply{}, err
	}

	if reply.Project != nil && len(reply.Project.Skipped) > 0 {
		c.log.Warn().
			Str("reply_project_id", reply.Project.ID).
			Strs("fields", reply.Project.Skipped).
			Msg("ignored project fields without usable text")
	}

	c.log.Debug().
		Str("phase", body.Phase()).
		Bool("final", reply.Final()).
		Msg("refine reply")

	return reply, nil
}
