package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Jamolkhon5/nexter/internal/models"
)

// ChatClient opens streamed free-form chat responses.
type ChatClient struct {
	http *http.Client
	log  zerolog.Logger
}

// NewStreamingHTTPClient bounds only the wait for response headers.
// The body of a chat stream may take as long as the model keeps writing.
func NewStreamingHTTPClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}

func NewChatClient(httpClient *http.Client, log zerolog.Logger) *ChatClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ChatClient{
		http: httpClient,
		log:  log.With().Str("component", "chat_client").Logger(),
	}
}

// Stream posts the chat request and returns the raw chunked body. The caller closes it.
func (c *ChatClient) Stream(ctx context.Context, endpoint string, chatReq models.ChatRequest) (io.ReadCloser, error) {
	jsonData, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug().
		Str("endpoint", endpoint).
		Int64("project_id", chatReq.ProjectID).
		Int("history", len(chatReq.History)).
		Msg("chat request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(errBody)}
	}

	return resp.Body, nil
}
