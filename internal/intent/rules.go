package intent

import "strings"

// Matcher is the keyword fast path run before the model classifier.
// Like Normalizer it uses plain substring checks on normalized text.
type Matcher struct {
	stopPhrases []string
}

// NewMatcher creates a fast-path matcher with the given stop phrases.
func NewMatcher(stopPhrases []string) *Matcher {
	return &Matcher{stopPhrases: append([]string(nil), stopPhrases...)}
}

// Match checks, in priority order: stop phrases, notepad, calculator,
// youtube, time, then date or today. The first hit wins.
func (m *Matcher) Match(text string) (Action, bool) {
	for _, p := range m.stopPhrases {
		if p != "" && strings.Contains(text, p) {
			return Action{Intent: Stop}, true
		}
	}

	switch {
	case strings.Contains(text, "notepad"):
		return Action{Intent: OpenApp, Target: Notepad}, true
	case strings.Contains(text, "calculator"):
		return Action{Intent: OpenApp, Target: Calculator}, true
	case strings.Contains(text, "youtube"):
		return Action{Intent: OpenWebsite, Target: YouTube}, true
	case strings.Contains(text, "time"):
		return Action{Intent: GetTime}, true
	case strings.Contains(text, "date"), strings.Contains(text, "today"):
		return Action{Intent: GetDate}, true
	}
	return Action{}, false
}

// FastMatch runs the default matcher over text.
func FastMatch(text string) (Action, bool) {
	return defaultMatcher.Match(text)
}

var defaultMatcher = NewMatcher(DefaultStopPhrases)
