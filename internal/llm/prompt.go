package llm

import (
	"fmt"
	"strings"

	"github.com/agalue/aayu/internal/intent"
)

// BuildPrompt returns the classification instruction with the user text embedded.
func BuildPrompt(assistant, text string) string {
	if assistant == "" {
		assistant = "Aayu"
	}

	intents := make([]string, 0, len(intent.AllowedIntents))
	for _, i := range intent.AllowedIntents {
		intents = append(intents, string(i))
	}
	targets := make([]string, 0, len(intent.AllowedTargets))
	for _, t := range intent.AllowedTargets {
		targets = append(targets, fmt.Sprintf("%q", string(t)))
	}

	return fmt.Sprintf(`
You are a STRICT intent classifier for a desktop voice assistant named %s.

Answer with a single JSON object with the keys "intent", "target" and "confidence".

Rules:
- intent MUST be one of: %s
- target MUST be one of: %s, except for intent "search" where target is the search query
- confidence is a number between 0 and 1
- No mobile apps, no placeholders, no explanations
- If unsure, intent = none

Examples:
"नोटपैड खोलो" -> {"intent": "open_app", "target": "notepad", "confidence": 0.9}
"ओपन यूट्यूब" -> {"intent": "open_website", "target": "youtube", "confidence": 0.9}
"टाइम क्या है" -> {"intent": "get_time", "target": "", "confidence": 0.9}
"search for cricket score" -> {"intent": "search", "target": "cricket score", "confidence": 0.8}

User: %q
`, assistant, strings.Join(intents, ", "), strings.Join(targets, ", "), text)
}
