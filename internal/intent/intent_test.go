package intent

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "notepad joined", in: "नोटपैड खोलो", want: "notepad खोलो"},
		{name: "notepad split", in: "नोट पैड खोलो", want: "notepad खोलो"},
		{name: "open youtube", in: "ओपन यूट्यूब", want: "open youtube"},
		{name: "time question", in: "टाइम क्या है", want: "time what है"},
		{name: "today date", in: "आज की तारीख", want: "today की date"},
		{name: "english untouched", in: "open calculator", want: "open calculator"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeMatchesMidWord(t *testing.T) {
	// "इस" has no boundary check and is rewritten inside longer words.
	assert.Equal(t, "isका", Normalize("इसका"))
}

func TestNormalizeAppliesInOrder(t *testing.T) {
	n := NewNormalizer([]Replacement{
		{From: "a", To: "b"},
		{From: "b", To: "c"},
	})
	assert.Equal(t, "cc", n.Normalize("ab"))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"नोटपैड खोलो",
		"ओपेन कैल्कुलेटर",
		"व्हाट इस द टाइम",
		"अभी समय क्या है",
		"आज की डेट",
		"गूगल पर सर्च करो",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), in)
	}
}

func TestFastMatch(t *testing.T) {
	tests := []struct {
		text string
		want Action
		ok   bool
	}{
		{text: "notepad खोलो", want: Action{Intent: OpenApp, Target: Notepad}, ok: true},
		{text: "open calculator", want: Action{Intent: OpenApp, Target: Calculator}, ok: true},
		{text: "open youtube", want: Action{Intent: OpenWebsite, Target: YouTube}, ok: true},
		{text: "time what है", want: Action{Intent: GetTime}, ok: true},
		{text: "today की date", want: Action{Intent: GetDate}, ok: true},
		{text: "what is the date", want: Action{Intent: GetDate}, ok: true},
		{text: "बंद करो", want: Action{Intent: Stop}, ok: true},
		{text: "please stop", want: Action{Intent: Stop}, ok: true},
		{text: "search for rust programming", ok: false},
		{text: "open google", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := FastMatch(tt.text)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFastMatchPriority(t *testing.T) {
	got, ok := FastMatch("stop notepad")
	require.True(t, ok)
	assert.Equal(t, Stop, got.Intent)

	got, ok = FastMatch("youtube notepad calculator")
	require.True(t, ok)
	assert.Equal(t, Action{Intent: OpenApp, Target: Notepad}, got)

	got, ok = FastMatch("calculator time")
	require.True(t, ok)
	assert.Equal(t, Calculator, got.Target)

	got, ok = FastMatch("time today")
	require.True(t, ok)
	assert.Equal(t, GetTime, got.Intent)
}

func TestFastMatchAlwaysPicksNotepad(t *testing.T) {
	for _, text := range []string{"notepad", "open notepad please", "xnotepadx", "google notepad search"} {
		got, ok := FastMatch(text)
		require.True(t, ok, text)
		assert.Equal(t, Action{Intent: OpenApp, Target: Notepad}, got, text)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   Verdict
	}{
		{
			name:   "valid open app",
			result: Result{Intent: OpenApp, Target: Notepad, Confidence: 0.9},
			want:   Accepted,
		},
		{
			name:   "exact floor",
			result: Result{Intent: GetTime, Confidence: 0.5},
			want:   Accepted,
		},
		{
			name:   "search with free query",
			result: Result{Intent: Search, Target: "rust programming", Confidence: 0.8},
			want:   Accepted,
		},
		{
			name:   "low confidence",
			result: Result{Intent: OpenWebsite, Target: Google, Confidence: 0.49},
			want:   LowConfidence,
		},
		{
			name:   "unknown intent high confidence",
			result: Result{Intent: "play_music", Target: YouTube, Confidence: 1},
			want:   Unsure,
		},
		{
			name:   "unknown target high confidence",
			result: Result{Intent: OpenApp, Target: "whatsapp", Confidence: 1},
			want:   Unsure,
		},
		{
			name:   "stop is not allowed from the model",
			result: Result{Intent: Stop, Confidence: 1},
			want:   Unsure,
		},
		{
			name:   "transport failure",
			result: Failure(OutcomeTransportError, errors.New("timeout")),
			want:   Unsure,
		},
		{
			name:   "parse failure",
			result: Failure(OutcomeParseError, errors.New("bad json")),
			want:   Unsure,
		},
		{
			name:   "none with confidence",
			result: Result{Intent: None, Confidence: 0.7},
			want:   Accepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.result, DefaultMinConfidence))
		})
	}
}

func TestFailureIsNeutral(t *testing.T) {
	r := Failure(OutcomeTransportError, errors.New("boom"))
	assert.True(t, r.Failed())
	assert.Equal(t, None, r.Intent)
	assert.Equal(t, NoTarget, r.Target)
	assert.Zero(t, r.Confidence)
	assert.Equal(t, "transport_error", r.Outcome.String())
}

func TestLoadVocabulary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	content := `
replacements:
  - from: "कैलक"
    to: "calculator"
  - from: "खोज"
    to: "search"
stop_phrases:
  - "Enough"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	vocab, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.Len(t, vocab.Replacements, len(DefaultReplacements)+2)
	assert.Equal(t, Replacement{From: "खोज", To: "search"}, vocab.Replacements[len(vocab.Replacements)-1])
	assert.Contains(t, vocab.StopPhrases, "enough")

	n := NewNormalizer(vocab.Replacements)
	assert.Equal(t, "search करो", n.Normalize("खोज करो"))

	m := NewMatcher(vocab.StopPhrases)
	got, ok := m.Match("that is enough")
	require.True(t, ok)
	assert.Equal(t, Stop, got.Intent)
}

func TestLoadVocabularyErrors(t *testing.T) {
	vocab, err := LoadVocabulary("")
	require.NoError(t, err)
	assert.Equal(t, DefaultVocabulary(), vocab)

	_, err = LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("replacements:\n  - to: open\n"), 0o600))
	_, err = LoadVocabulary(path)
	assert.Error(t, err)
}
