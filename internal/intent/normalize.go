package intent

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Replacement maps a spoken token to its canonical keyword.
type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// DefaultReplacements is the built-in Hindi to English keyword table.
// Order matters: each entry runs on the output of the previous ones.
var DefaultReplacements = []Replacement{
	{From: "ओपेन", To: "open"},
	{From: "ओपन", To: "open"},
	{From: "नोट पैड", To: "notepad"},
	{From: "नोटपैड", To: "notepad"},
	{From: "कैलकुलेटर", To: "calculator"},
	{From: "कैल्कुलेटर", To: "calculator"},
	{From: "यूट्यूब", To: "youtube"},
	{From: "गूगल", To: "google"},
	{From: "व्हाट", To: "what"},
	{From: "इस", To: "is"},
	{From: "टाइम", To: "time"},
	{From: "समय", To: "time"},
	{From: "अभी", To: "now"},
	{From: "क्या", To: "what"},
	{From: "आज", To: "today"},
	{From: "तारीख", To: "date"},
	{From: "डेट", To: "date"},
}

// DefaultStopPhrases end a listening cycle without any action.
var DefaultStopPhrases = []string{"stop", "sleep", "रुक", "रुक जाओ", "बस", "बंद"}

// Normalizer rewrites transcripts with literal substring replacement.
//
// Matching is plain substring search with no word boundaries, so a token can
// match in the middle of a word. Callers that need tokenized matching should
// replace this type rather than change its behavior.
type Normalizer struct {
	replacements []Replacement
}

// NewNormalizer builds a normalizer applying replacements in the given order.
func NewNormalizer(replacements []Replacement) *Normalizer {
	return &Normalizer{replacements: slices.Clone(replacements)}
}

// Normalize applies every replacement, in order, to the whole string.
func (n *Normalizer) Normalize(text string) string {
	for _, r := range n.replacements {
		if r.From == "" {
			continue
		}
		text = strings.ReplaceAll(text, r.From, r.To)
	}
	return text
}

// Normalize runs the built-in table over text.
func Normalize(text string) string {
	return defaultNormalizer.Normalize(text)
}

var defaultNormalizer = NewNormalizer(DefaultReplacements)

// PrepareTranscript lowercases and trims a raw decoder transcript before normalization.
func PrepareTranscript(raw string) string {
	return strings.TrimSpace(strings.ToLower(raw))
}

// Vocabulary is the user-editable extension of the built-in tables.
type Vocabulary struct {
	Replacements []Replacement `yaml:"replacements"`
	StopPhrases  []string      `yaml:"stop_phrases"`
}

// DefaultVocabulary returns the built-in tables.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Replacements: slices.Clone(DefaultReplacements),
		StopPhrases:  slices.Clone(DefaultStopPhrases),
	}
}

// LoadVocabulary reads a YAML file and appends its entries after the built-in ones.
// An empty path returns the defaults.
func LoadVocabulary(path string) (Vocabulary, error) {
	vocab := DefaultVocabulary()
	if path == "" {
		return vocab, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return vocab, fmt.Errorf("read vocabulary: %w", err)
	}

	var extra Vocabulary
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return vocab, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}

	for i, r := range extra.Replacements {
		if r.From == "" {
			return vocab, fmt.Errorf("vocabulary %s: replacement %d has empty 'from'", path, i)
		}
	}

	vocab.Replacements = append(vocab.Replacements, extra.Replacements...)
	for _, p := range extra.StopPhrases {
		if p = strings.TrimSpace(p); p != "" {
			vocab.StopPhrases = append(vocab.StopPhrases, strings.ToLower(p))
		}
	}
	return vocab, nil
}
