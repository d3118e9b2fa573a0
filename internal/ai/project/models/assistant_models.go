package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RefineRequest is the body posted to the refine service.
// The phase is implied by which fields are set:
// START carries ProjectID and State, ING carries Answer, DONE carries Answer and ProjectID.
type RefineRequest struct {
	ProjectID int64  `json:"project_id,omitempty"`
	State     string `json:"state,omitempty"`
	Answer    string `json:"answer,omitempty"`
}

// StateStart is the only explicit state value of the refine protocol.
const StateStart = "start"

// Phase names the refine protocol phase of a request.
func (r RefineRequest) Phase() string {
	switch {
	case r.State == StateStart:
		return "start"
	case r.ProjectID != 0:
		return "done"
	default:
		return "ing"
	}
}

// Reply is what the refine service answered, independent of its wire shape.
type Reply struct {
	Message string
	Project *FieldBag
}

// Final reports whether the reply carries structured project fields.
func (r Reply) Final() bool {
	return r.Project != nil
}

// TextList is a field that may arrive as a single string or as an array of strings.
// Objects contribute their first text-like member; anything else is skipped.
type TextList []string

// objectTextKeys are the members read from object values, in order.
var objectTextKeys = []string{"text", "title", "name", "content", "value", "description"}

func (l *TextList) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	var out TextList
	switch v := v.(type) {
	case []any:
		out = make(TextList, 0, len(v))
		for _, item := range v {
			if s, ok := textOf(item); ok {
				out = append(out, s)
			}
		}
	default:
		if s, ok := textOf(v); ok {
			out = TextList{s}
		}
	}
	*l = out
	return nil
}

func textOf(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case float64, bool:
		return fmt.Sprint(v), true
	case map[string]any:
		for _, key := range objectTextKeys {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return s, true
			}
		}
	}
	return "", false
}

// Values returns the non-blank entries, trimmed.
func (l TextList) Values() []string {
	out := make([]string, 0, len(l))
	for _, v := range l {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Joined flattens the list to a single display string.
func (l TextList) Joined() string {
	return strings.Join(l.Values(), ", ")
}

// First returns the first non-blank entry.
func (l TextList) First() string {
	if v := l.Values(); len(v) > 0 {
		return v[0]
	}
	return ""
}

// FieldBag is the loosely typed project data returned by the DONE phase.
// Keys are accepted in snake_case or camelCase, values as scalars or arrays.
// Values that hold no usable text are listed in Skipped instead of failing the bag.
type FieldBag struct {
	ID           string
	Title        TextList
	Category     TextList
	Tags         TextList
	Summary      TextList
	Roles        TextList
	Achievements TextList
	Tools        TextList
	Description  TextList
	StartDate    TextList
	EndDate      TextList

	Skipped []string
}

var fieldAliases = map[string][]string{
	"title":        {"title"},
	"category":     {"category"},
	"tags":         {"tags"},
	"summary":      {"summary"},
	"roles":        {"role", "roles"},
	"achievements": {"achievements"},
	"tools":        {"tools"},
	"description":  {"description"},
	"start_date":   {"start_date", "startDate"},
	"end_date":     {"end_date", "endDate"},
}

func (b *FieldBag) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	targets := map[string]*TextList{
		"title":        &b.Title,
		"category":     &b.Category,
		"tags":         &b.Tags,
		"summary":      &b.Summary,
		"roles":        &b.Roles,
		"achievements": &b.Achievements,
		"tools":        &b.Tools,
		"description":  &b.Description,
		"start_date":   &b.StartDate,
		"end_date":     &b.EndDate,
	}

	for field, target := range targets {
		for _, key := range fieldAliases[field] {
			value, ok := raw[key]
			if !ok {
				continue
			}
			var list TextList
			if err := json.Unmarshal(value, &list); err != nil || len(list.Values()) == 0 {
				if !isBlank(value) {
					b.Skipped = append(b.Skipped, key)
				}
				continue
			}
			*target = list
			break
		}
	}

	if id, ok := raw["id"]; ok {
		var list TextList
		if err := json.Unmarshal(id, &list); err == nil {
			b.ID = list.First()
		}
	}

	sort.Strings(b.Skipped)
	return nil
}

// isBlank reports whether a raw value is null, an empty string or an empty array.
func isBlank(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "null", `""`, "[]":
		return true
	}
	return false
}

// Empty reports whether the bag carries no usable value.
func (b FieldBag) Empty() bool {
	for _, l := range []TextList{b.Title, b.Category, b.Tags, b.Summary, b.Roles,
		b.Achievements, b.Tools, b.Description, b.StartDate, b.EndDate} {
		if len(l.Values()) > 0 {
			return false
		}
	}
	return true
}

// ValidationState holds field-keyed validation results.
type ValidationState struct {
	IsValid  bool              `json:"is_valid"`
	Errors   map[string]string `json:"errors"`
	Warnings map[string]string `json:"warnings"`
}
