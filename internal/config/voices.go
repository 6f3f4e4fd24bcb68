package config

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
)

// ErrUnknownVoice is returned for a voice name that is not in Voices.
var ErrUnknownVoice = errors.New("unknown voice")

// Voice is a Kokoro multi-lang v1.0 speaker.
type Voice struct {
	SpeakerID  int
	EspeakCode string
	Language   string
}

// Voices lists the English and Hindi speakers of the Kokoro v1.0 model.
// Replies are English, so the Hindi voices give them a Hindi accent.
var Voices = map[string]Voice{
	"af_alloy":   {0, "en-us", "American English"},
	"af_aoede":   {1, "en-us", "American English"},
	"af_bella":   {2, "en-us", "American English"},
	"af_heart":   {3, "en-us", "American English"},
	"af_jessica": {4, "en-us", "American English"},
	"af_kore":    {5, "en-us", "American English"},
	"af_nicole":  {6, "en-us", "American English"},
	"af_nova":    {7, "en-us", "American English"},
	"af_river":   {8, "en-us", "American English"},
	"af_sarah":   {9, "en-us", "American English"},
	"af_sky":     {10, "en-us", "American English"},
	"am_adam":    {11, "en-us", "American English"},
	"am_echo":    {12, "en-us", "American English"},
	"am_eric":    {13, "en-us", "American English"},
	"am_fenrir":  {14, "en-us", "American English"},
	"am_liam":    {15, "en-us", "American English"},
	"am_michael": {16, "en-us", "American English"},
	"am_onyx":    {17, "en-us", "American English"},
	"am_puck":    {18, "en-us", "American English"},
	"am_santa":   {19, "en-us", "American English"},

	"bf_alice":    {20, "en-gb", "British English"},
	"bf_emma":     {21, "en-gb", "British English"},
	"bf_isabella": {22, "en-gb", "British English"},
	"bf_lily":     {23, "en-gb", "British English"},
	"bm_daniel":   {24, "en-gb", "British English"},
	"bm_fable":    {25, "en-gb", "British English"},
	"bm_george":   {26, "en-gb", "British English"},
	"bm_lewis":    {27, "en-gb", "British English"},

	"hf_alpha": {31, "hi", "Hindi"},
	"hf_beta":  {32, "hi", "Hindi"},
	"hm_omega": {33, "hi", "Hindi"},
	"hm_psi":   {34, "hi", "Hindi"},
}

// LookupVoice returns the named voice.
func LookupVoice(name string) (Voice, error) {
	v, ok := Voices[name]
	if !ok {
		return Voice{}, fmt.Errorf("%w %q (see --list-voices)", ErrUnknownVoice, name)
	}
	return v, nil
}

// voiceLexicon picks the lexicon shipped with the model for English voices.
// Hindi goes through espeak-ng and needs none.
func voiceLexicon(ttsDir string, v Voice) string {
	switch v.EspeakCode {
	case "en-us":
		return filepath.Join(ttsDir, "lexicon-us-en.txt")
	case "en-gb":
		return filepath.Join(ttsDir, "lexicon-gb-en.txt")
	}
	return ""
}

// voiceLanguage is the espeak code passed to Kokoro when no lexicon is used.
func voiceLanguage(v Voice) string {
	if strings.HasPrefix(v.EspeakCode, "en") {
		return ""
	}
	return v.EspeakCode
}

// PrintVoices writes the voice table grouped by language.
func PrintVoices(w io.Writer) {
	names := make([]string, 0, len(Voices))
	for name := range Voices {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := strings.Compare(Voices[a].Language, Voices[b].Language); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	language := ""
	for _, name := range names {
		v := Voices[name]
		if v.Language != language {
			language = v.Language
			fmt.Fprintf(w, "\n── %s ──\n", language)
			fmt.Fprintf(w, "%-14s %-4s %s\n", "VOICE", "ID", "ESPEAK")
		}
		fmt.Fprintf(w, "%-14s %-4d %s\n", name, v.SpeakerID, v.EspeakCode)
	}
	fmt.Fprintf(w, "\nDefault: %s\n", DefaultConfig().TTSVoice)
}

// PrintVoiceInfo writes the details of one voice.
func PrintVoiceInfo(w io.Writer, name string) error {
	v, err := LookupVoice(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Voice:       %s\n", name)
	fmt.Fprintf(w, "Speaker ID:  %d\n", v.SpeakerID)
	fmt.Fprintf(w, "Language:    %s\n", v.Language)
	fmt.Fprintf(w, "Espeak code: %s\n", v.EspeakCode)
	fmt.Fprintf(w, "\nUsage: aayu --tts-voice %s\n", name)
	return nil
}
