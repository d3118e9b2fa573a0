// Package prompts holds the fixed texts of the assistant: welcome messages,
// the local question script, the save recap and notices.
package prompts

import (
	"fmt"
	"strings"

	"github.com/Jamolkhon5/nexter/internal/models"
)

const WelcomeMessage = "Hi! I'm Nexter, your career growth partner.\n" +
	"I'll help you discover the strengths hidden in your projects\n" +
	"and shape them into your career story and cover letter.\n" +
	"Pick a project on the left or add a new one to get started!"

const ProjectWelcomeTemplate = "Hi! Shall we organize the %q project together?\nAsk me anything about it."

const RegisterProjectMessage = "Please select a project first, or register a new one."

const ClosingMessage = "Thanks for your answers! I'll update the project details based on what we talked about. " +
	"Feel free to keep the conversation going whenever you like."

const DoneFallbackMessage = "I've filled in the project details. See you next time!"

const Apology = "Sorry, I couldn't generate a response."

// Notices shown to the user.
const (
	NoticeLocalMode        = "Can't reach the AI server, continuing in local mode."
	NoticeOrganizeStarted  = "Starting the conversation with AI."
	NoticeConversationKept = "Loaded the existing conversation."
	NoticeResetDone        = "The conversation was reset."
	NoticeSendFailed       = "Failed to send the message."
	NoticeArchiveFailed    = "Failed to save the conversation."
	NoticeNoHistory        = "There is no conversation history."
	NoticeLoadFailed       = "Failed to load messages."
	NoticeProjectUpdated   = "Project details updated!"
	NoticeAnswersApplied   = "The conversation was applied to the project."
	NoticeSavedLocally     = "Project analysis complete (saved locally only)."
	NoticeAppliedLocally   = "The conversation was applied to the project (saved locally only)."
)

// Questions is the local organize script.
var Questions = [...]string{
	"What was the main goal of this project?",
	"What role did you take on?",
	"What was the hardest part, and how did you solve it?",
	"What results did you achieve or what did you learn from this project?",
}

// Placeholders used when the local script leaves a field empty.
const (
	PlaceholderGoal         = "The project goal hasn't been entered yet."
	PlaceholderRole         = "Describe the role you took on."
	PlaceholderAchievements = "Adding key achievements makes the project stand out."
	PlaceholderTools        = "List the tools and technologies you used."
	PlaceholderDescription  = "Add more notes to enrich the description."
)

// ProjectWelcome greets the user for a selected project, or globally when title is empty.
func ProjectWelcome(title string) string {
	if strings.TrimSpace(title) == "" {
		return WelcomeMessage
	}
	return fmt.Sprintf(ProjectWelcomeTemplate, title)
}

// Question renders step 0..len(Questions)-1 of the script.
func Question(step int, title string) string {
	switch step {
	case 0:
		if title == "" {
			title = "this"
		}
		return fmt.Sprintf("Hi! Shall we organize the %q project together?\n\nFirst, %s", title, lowerFirst(Questions[0]))
	case 1:
		return fmt.Sprintf("Great! Next: %s", Questions[1])
	case 2:
		return fmt.Sprintf("Sounds like a great experience. Now tell me: %s", Questions[2])
	case 3:
		return fmt.Sprintf("Last question. %s", Questions[3])
	default:
		return ClosingMessage
	}
}

// ProjectSummary recaps the fields a local organize flow wrote into the project.
func ProjectSummary(p models.Project) string {
	description := p.Description
	if strings.TrimSpace(description) == "" {
		description = PlaceholderDescription
	}
	return strings.Join([]string{
		"Saved!",
		"",
		"Goal\n" + p.Summary,
		"My role\n" + p.Role,
		"Key achievements\n" + p.Achievements,
		"Tools\n" + p.Tools,
		"Details\n" + description,
	}, "\n")
}

// Failure is the apology shown in place of a reply that could not be produced.
func Failure(err error) string {
	if err == nil {
		return Apology
	}
	return fmt.Sprintf("%s\n\nError: %v", Apology, err)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
