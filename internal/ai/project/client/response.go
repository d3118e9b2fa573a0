package client

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Jamolkhon5/nexter/internal/ai/project/models"
)

const maxShapeErrorBody = 256

// decodeReply accepts the three encodings the refine service is known to use:
// {"message": "..."}, {"content": "..."} or the whole payload being a JSON string.
// A DONE reply may additionally carry a "project" field bag.
func decodeReply(body []byte) (models.Reply, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return models.Reply{}, &ProtocolShapeError{Body: ""}
	}

	if body[0] == '"' {
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return models.Reply{}, &ProtocolShapeError{Body: truncate(body)}
		}
		if s == "" {
			return models.Reply{}, &ProtocolShapeError{Body: truncate(body)}
		}
		return models.Reply{Message: s}, nil
	}

	var payload struct {
		Message json.RawMessage  `json:"message"`
		Content json.RawMessage  `json:"content"`
		Project *models.FieldBag `json:"project"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.Reply{}, &ProtocolShapeError{Body: truncate(body)}
	}

	reply := models.Reply{
		Message: firstText(payload.Message, payload.Content),
		Project: payload.Project,
	}
	if reply.Message == "" && reply.Project == nil {
		return models.Reply{}, &ProtocolShapeError{Body: truncate(body)}
	}
	return reply, nil
}

// firstText returns the first candidate holding a non-empty string.
// A message object (as returned by older servers) contributes its "content".
func firstText(candidates ...json.RawMessage) string {
	for _, raw := range candidates {
		if len(raw) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		var row struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(raw, &row); err == nil && row.Content != "" {
			return row.Content
		}
	}
	return ""
}

func truncate(body []byte) string {
	if len(body) <= maxShapeErrorBody {
		return string(body)
	}
	return fmt.Sprintf("%s...", body[:maxShapeErrorBody])
}
