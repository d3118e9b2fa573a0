package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	pmodels "github.com/Jamolkhon5/nexter/internal/ai/project/models"
	"github.com/Jamolkhon5/nexter/internal/ai/project/prompts"
	"github.com/Jamolkhon5/nexter/internal/ai/project/validator"
	"github.com/Jamolkhon5/nexter/internal/models"
)

// Synthesizer merges assistant output into project records.
type Synthesizer struct {
	log zerolog.Logger
}

func NewSynthesizer(log zerolog.Logger) *Synthesizer {
	return &Synthesizer{log: log.With().Str("component", "synthesizer").Logger()}
}

// Merge applies a DONE field bag: every non-empty incoming value wins,
// everything else keeps the existing value. Unreadable dates are dropped.
func (s *Synthesizer) Merge(project models.Project, bag *pmodels.FieldBag) models.Project {
	merged := project.Clone()
	if bag == nil || bag.Empty() {
		return merged
	}
	if bag.ID != "" && bag.ID != strconv.FormatInt(project.ID, 10) {
		s.log.Warn().
			Int64("project_id", project.ID).
			Str("reply_project_id", bag.ID).
			Msg("done reply names another project, merging into the selected one")
	}

	setText(&merged.Title, bag.Title.Joined())
	setText(&merged.Category, bag.Category.Joined())
	setText(&merged.Summary, bag.Summary.Joined())
	setText(&merged.Role, bag.Roles.First())
	setText(&merged.Achievements, bag.Achievements.Joined())
	setText(&merged.Tools, bag.Tools.Joined())
	setText(&merged.Description, bag.Description.Joined())

	if tags := bag.Tags.Values(); len(tags) > 0 {
		merged.Tags = tags
	}

	merged.StartDate = s.mergeDate(merged.StartDate, bag.StartDate.First(), "start_date")
	merged.EndDate = s.mergeDate(merged.EndDate, bag.EndDate.First(), "end_date")

	return s.enforce(project, merged)
}

// MergeAnswers is the local-mode heuristic: answer 1 is the summary, 2 the role,
// 3 the achievements and 4+ extend the description.
func (s *Synthesizer) MergeAnswers(project models.Project, answers []string) models.Project {
	merged := project.Clone()
	answer := func(i int) string {
		if i < len(answers) {
			return strings.TrimSpace(answers[i])
		}
		return ""
	}

	merged.Summary = firstNonEmpty(answer(0), project.Summary, prompts.PlaceholderGoal)
	merged.Role = firstNonEmpty(answer(1), project.Role, prompts.PlaceholderRole)
	merged.Achievements = firstNonEmpty(answer(2), project.Achievements, prompts.PlaceholderAchievements)
	merged.Tools = firstNonEmpty(project.Tools, prompts.PlaceholderTools)

	parts := []string{strings.TrimSpace(project.Description)}
	if len(answers) > 3 {
		for _, a := range answers[3:] {
			parts = append(parts, strings.TrimSpace(a))
		}
	}
	merged.Description = firstNonEmpty(joinNonEmpty(parts, "\n\n"), prompts.PlaceholderDescription)

	return s.enforce(project, merged)
}

// enforce reverts fields the validator rejects to their previous values.
func (s *Synthesizer) enforce(previous, merged models.Project) models.Project {
	state := validator.ValidateProject(merged)
	for field, msg := range state.Warnings {
		s.log.Warn().Int64("project_id", merged.ID).Str("field", field).Msg(msg)
	}
	if state.IsValid {
		return merged
	}

	for field, msg := range state.Errors {
		s.log.Warn().Int64("project_id", merged.ID).Str("field", field).Msg("dropping invalid field: " + msg)
		switch field {
		case validator.FieldTitle:
			merged.Title = previous.Title
		case validator.FieldEndDate:
			merged.EndDate = previous.Clone().EndDate
		}
	}

	if state = validator.ValidateProject(merged); !state.IsValid {
		// previous record was already inconsistent; keep its dates untouched
		merged.StartDate = previous.Clone().StartDate
		merged.EndDate = previous.Clone().EndDate
	}
	return merged
}

func (s *Synthesizer) mergeDate(current *time.Time, raw, field string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return current
	}
	t, ok := validator.ParseDate(raw)
	if !ok {
		s.log.Warn().Str("field", field).Str("value", raw).Msg("dropping unreadable date")
		return current
	}
	return &t
}

func setText(dst *string, incoming string) {
	if incoming = strings.TrimSpace(incoming); incoming != "" {
		*dst = incoming
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(parts []string, sep string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
