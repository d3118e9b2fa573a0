package validator

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Jamolkhon5/nexter/internal/ai/project/models"
	core "github.com/Jamolkhon5/nexter/internal/models"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
	MaxTags              = 20
)

// Field keys used in ValidationState.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldTags        = "tags"
	FieldEndDate     = "end_date"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01",
	"2006.01.02",
	"2006.01",
}

// ParseDate parses the ISO-like date strings the assistant services return.
// It reports false for anything it cannot read; callers drop such values.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ValidateProject checks a merged project record.
func ValidateProject(p core.Project) models.ValidationState {
	state := models.ValidationState{
		Errors:   make(map[string]string),
		Warnings: make(map[string]string),
	}

	if err := validateTitle(p.Title); err != nil {
		state.Errors[FieldTitle] = err.Error()
	}

	if err := validatePeriod(p.StartDate, p.EndDate); err != nil {
		state.Errors[FieldEndDate] = err.Error()
	}

	if utf8.RuneCountInString(p.Description) > MaxDescriptionLength {
		state.Warnings[FieldDescription] = fmt.Sprintf("description is longer than %d characters", MaxDescriptionLength)
	}

	if len(p.Tags) > MaxTags {
		state.Warnings[FieldTags] = fmt.Sprintf("more than %d tags", MaxTags)
	}

	state.IsValid = len(state.Errors) == 0
	return state
}

func validateTitle(title string) error {
	if utf8.RuneCountInString(strings.TrimSpace(title)) > MaxTitleLength {
		return fmt.Errorf("title cannot be longer than %d characters", MaxTitleLength)
	}
	return nil
}

func validatePeriod(start, end *time.Time) error {
	if start == nil || end == nil {
		return nil
	}
	if end.Before(*start) {
		return fmt.Errorf("end date %s is before start date %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return nil
}
