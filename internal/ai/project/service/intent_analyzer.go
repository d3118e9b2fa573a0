package service

import (
	"regexp"
	"strings"
)

// IntentType classifies a user reply inside an organize flow.
type IntentType string

const (
	IntentAnswer  IntentType = "answer"
	IntentConfirm IntentType = "confirm"
)

type Intent struct {
	Type    IntentType
	Content string
}

// IntentAnalyzer decides whether a reply asks the refine service to finalize.
type IntentAnalyzer struct {
	confirmRegex *regexp.Regexp
	trailing     string
}

func NewIntentAnalyzer() *IntentAnalyzer {
	return &IntentAnalyzer{
		confirmRegex: regexp.MustCompile(`^(yes|y|ok|okay|done|confirm|confirmed|네|예|완료|확인)$`),
		trailing:     ".!~ ",
	}
}

func (ia *IntentAnalyzer) AnalyzeMessage(message string) Intent {
	normalized := strings.TrimRight(strings.ToLower(strings.TrimSpace(message)), ia.trailing)

	if ia.confirmRegex.MatchString(normalized) {
		return Intent{Type: IntentConfirm, Content: normalized}
	}

	return Intent{Type: IntentAnswer, Content: message}
}

// IsConfirmation reports whether the whole reply is an affirmative like "yes" or "done".
func (ia *IntentAnalyzer) IsConfirmation(message string) bool {
	return ia.AnalyzeMessage(message).Type == IntentConfirm
}
