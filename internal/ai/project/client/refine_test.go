package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamolkhon5/nexter/internal/ai/project/models"
)

func newRefineServer(t *testing.T, handler func(t *testing.T, body map[string]any, r *http.Request) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		body := map[string]any{}
		require.NoError(t, json.Unmarshal(raw, &body))

		status, resp := handler(t, body, r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRefineClient_StartSendsStartShape(t *testing.T) {
	srv := newRefineServer(t, func(t *testing.T, body map[string]any, r *http.Request) (int, string) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, float64(7), body["project_id"])
		assert.Equal(t, "start", body["state"])
		assert.NotContains(t, body, "answer")
		assert.Equal(t, "session-1", r.Header.Get(SessionHeader))
		return http.StatusOK, `{"message":"Hello, let's talk about Campaign X"}`
	})

	c := NewRefineClient(srv.URL, srv.Client(), zerolog.Nop()).WithSession("session-1")
	greeting, err := c.Start(context.Background(), 7, "Campaign X")
	require.NoError(t, err)
	assert.Equal(t, "Hello, let's talk about Campaign X", greeting)
}

func TestRefineClient_AdvancePhases(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		doneID   int64
		wantKeys []string
		skipKeys []string
	}{
		{name: "ing", answer: "It was a marketing site", wantKeys: []string{"answer"}, skipKeys: []string{"project_id", "state"}},
		{name: "done", answer: "yes", doneID: 7, wantKeys: []string{"answer", "project_id"}, skipKeys: []string{"state"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newRefineServer(t, func(t *testing.T, body map[string]any, r *http.Request) (int, string) {
				for _, k := range tt.wantKeys {
					assert.Contains(t, body, k)
				}
				for _, k := range tt.skipKeys {
					assert.NotContains(t, body, k)
				}
				assert.Empty(t, r.Header.Get(SessionHeader))
				return http.StatusOK, `{"content":"next question"}`
			})

			c := NewRefineClient(srv.URL, srv.Client(), zerolog.Nop())
			reply, err := c.Advance(context.Background(), tt.answer, tt.doneID)
			require.NoError(t, err)
			assert.Equal(t, "next question", reply.Message)
			assert.False(t, reply.Final())
		})
	}
}

func TestRefineClient_ResponseShapes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		want  string
		final bool
	}{
		{name: "message field", body: `{"message":"hi"}`, want: "hi"},
		{name: "content field", body: `{"content":"hi"}`, want: "hi"},
		{name: "bare string", body: `"hi"`, want: "hi"},
		{name: "message object", body: `{"message":{"role":"ai","content":"hi"}}`, want: "hi"},
		{name: "done with bag", body: `{"message":"saved","project":{"achievements":["a","b"]}}`, want: "saved", final: true},
		{name: "done without text", body: `{"project":{"title":"X"}}`, want: "", final: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newRefineServer(t, func(t *testing.T, body map[string]any, r *http.Request) (int, string) {
				return http.StatusOK, tt.body
			})

			c := NewRefineClient(srv.URL, srv.Client(), zerolog.Nop())
			reply, err := c.Advance(context.Background(), "answer", 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply.Message)
			assert.Equal(t, tt.final, reply.Final())
		})
	}
}

func TestRefineClient_DoneBagAliases(t *testing.T) {
	srv := newRefineServer(t, func(t *testing.T, body map[string]any, r *http.Request) (int, string) {
		return http.StatusOK, `{"message":"ok","project":{"id":7,"role":["PM","Dev"],"startDate":"2024-01-01","end_date":"2024-06","tags":"go","achievements":["a","b"]}}`
	})

	c := NewRefineClient(srv.URL, srv.Client(), zerolog.Nop())
	reply, err := c.Advance(context.Background(), "yes", 7)
	require.NoError(t, err)
	require.NotNil(t, reply.Project)

	bag := reply.Project
	assert.Equal(t, "7", bag.ID)
	assert.Equal(t, "PM", bag.Roles.First())
	assert.Equal(t, "2024-01-01", bag.StartDate.First())
	assert.Equal(t, "2024-06", bag.EndDate.First())
	assert.Equal(t, []string{"go"}, bag.Tags.Values())
	assert.Equal(t, "a, b", bag.Achievements.Joined())
	assert.False(t, bag.Empty())
}

func TestRefineClient_DoneBagToleratesObjectValues(t *testing.T) {
	srv := newRefineServer(t, func(t *testing.T, body map[string]any, r *http.Request) (int, string) {
		return http.StatusOK, `{"message":"Project enriched!","project":{` +
			`"summary":"s",` +
			`"achievements":[{"title":"a"},{"name":"b"},{"score":3}],` +
			`"description":{"text":"d"},` +
			`"tools":{"count":2},` +
			`"tags":null}}`
	})

	c := NewRefineClient(srv.URL, srv.Client(), zerolog.Nop())
	reply, err := c.Advance(context.Background(), "yes", 7)
	require.NoError(t, err)
	assert.Equal(t, "Project enriched!", reply.Message)
	require.True(t, reply.Final())

	bag := reply.Project
	assert.Equal(t, "s", bag.Summary.First())
	assert.Equal(t, "a, b", bag.Achievements.Joined())
	assert.Equal(t, "d", bag.Description.First())
	assert.Empty(t, bag.Tools.Values())
	assert.Equal(t, []string{"tools"}, bag.Skipped)
}

func TestRefineClient_Errors(t *testing.T) {
	t.Run("non-2xx is a transport error with the body", func(t *testing.T) {
		srv := newRefineServer(t, func(t *testing.T, body map[string]any, r *http.Request) (int, string) {
			return http.StatusBadGateway, `{"detail":"upstream down"}`
		})

		c := NewRefineClient(srv.URL, srv.Client(), zerolog.Nop())
		_, err := c.Start(context.Background(), 1, "X")

		var terr *TransportError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, http.StatusBadGateway, terr.StatusCode)
		assert.Contains(t, terr.Body, "upstream down")
	})

	t.Run("unknown shape", func(t *testing.T) {
		srv := newRefineServer(t, func(t *testing.T, body map[string]any, r *http.Request) (int, string) {
			return http.StatusOK, `{"text":"hi"}`
		})

		c := NewRefineClient(srv.URL, srv.Client(), zerolog.Nop())
		_, err := c.Advance(context.Background(), "a", 0)

		var serr *ProtocolShapeError
		require.ErrorAs(t, err, &serr)
	})

	t.Run("start without greeting", func(t *testing.T) {
		srv := newRefineServer(t, func(t *testing.T, body map[string]any, r *http.Request) (int, string) {
			return http.StatusOK, `{"project":{"title":"X"}}`
		})

		c := NewRefineClient(srv.URL, srv.Client(), zerolog.Nop())
		_, err := c.Start(context.Background(), 1, "X")

		var serr *ProtocolShapeError
		require.ErrorAs(t, err, &serr)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c := NewRefineClient(url, &http.Client{Timeout: time.Second}, zerolog.Nop())
		_, err := c.Start(context.Background(), 1, "X")

		var terr *TransportError
		require.ErrorAs(t, err, &terr)
		assert.Zero(t, terr.StatusCode)
		assert.NotNil(t, errors.Unwrap(err))
	})
}

func TestRefineRequestPhase(t *testing.T) {
	assert.Equal(t, "start", models.RefineRequest{ProjectID: 1, State: models.StateStart}.Phase())
	assert.Equal(t, "ing", models.RefineRequest{Answer: "a"}.Phase())
	assert.Equal(t, "done", models.RefineRequest{Answer: "yes", ProjectID: 1}.Phase())
}
