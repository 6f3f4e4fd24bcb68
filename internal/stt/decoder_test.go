package stt

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agalue/aayu/internal/audio"
	"github.com/agalue/aayu/internal/sherpa"
)

// fakeVAD emits one segment made of everything it saw once endAfter windows
// have been accepted.
type fakeVAD struct {
	windows  [][]float32
	endAfter int
	queue    []*sherpa.SpeechSegment
	cleared  int
}

func (f *fakeVAD) AcceptWaveform(samples []float32) {
	f.windows = append(f.windows, append([]float32(nil), samples...))
	if len(f.windows) == f.endAfter {
		var all []float32
		for _, w := range f.windows {
			all = append(all, w...)
		}
		f.queue = append(f.queue, &sherpa.SpeechSegment{Samples: all})
	}
}

func (f *fakeVAD) IsSpeech() bool { return len(f.windows) > 0 && len(f.windows) < f.endAfter }
func (f *fakeVAD) IsEmpty() bool  { return len(f.queue) == 0 }
func (f *fakeVAD) Front() *sherpa.SpeechSegment {
	return f.queue[0]
}
func (f *fakeVAD) Pop() { f.queue = f.queue[1:] }
func (f *fakeVAD) Clear() {
	f.cleared++
	f.windows = nil
	f.queue = nil
}

func newTestDecoder(vad *fakeVAD, transcribe func([]float32) (string, error)) *Decoder {
	return &Decoder{
		vad:        vad,
		transcribe: transcribe,
		sampleRate: audio.DefaultSampleRate,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func frame(samples int) []byte {
	return make([]byte, samples*2)
}

func TestDecoderFeedsWholeWindows(t *testing.T) {
	vad := &fakeVAD{endAfter: 100}
	d := newTestDecoder(vad, nil)

	assert.False(t, d.AcceptWaveform(frame(1000)))
	assert.Len(t, vad.windows, 1, "1000 samples hold one full 512 window")
	assert.Len(t, d.window, 1000-VADWindowSize)

	assert.False(t, d.AcceptWaveform(frame(24)))
	assert.Len(t, vad.windows, 2)
	assert.Empty(t, d.window)
}

func TestDecoderFinalAfterSegment(t *testing.T) {
	vad := &fakeVAD{endAfter: 8}
	d := newTestDecoder(vad, nil)

	final := false
	reads := 0
	for !final {
		final = d.AcceptWaveform(frame(audio.DefaultFrameSamples))
		reads++
		require.Less(t, reads, 10)
	}
	assert.Equal(t, 2, reads, "4000 samples feed 7 windows, the 8th arrives in read 2")
}

func TestDecoderResult(t *testing.T) {
	vad := &fakeVAD{endAfter: 2}
	var transcribed int
	d := newTestDecoder(vad, func(samples []float32) (string, error) {
		transcribed = len(samples)
		return "  नोटपैड खोलो ", nil
	})

	assert.False(t, d.AcceptWaveform(frame(VADWindowSize)))
	assert.True(t, d.AcceptWaveform(frame(VADWindowSize)))
	assert.Equal(t, "नोटपैड खोलो", d.Result())
	assert.Equal(t, 2*VADWindowSize, transcribed)

	assert.Empty(t, d.Result(), "result is consumed")
}

func TestDecoderResultError(t *testing.T) {
	vad := &fakeVAD{endAfter: 1}
	d := newTestDecoder(vad, func([]float32) (string, error) { return "", errors.New("boom") })

	require.True(t, d.AcceptWaveform(frame(VADWindowSize)))
	assert.Empty(t, d.Result())
}

func TestDecoderReset(t *testing.T) {
	vad := &fakeVAD{endAfter: 1}
	d := newTestDecoder(vad, func([]float32) (string, error) { return "stale", nil })

	require.True(t, d.AcceptWaveform(frame(VADWindowSize+10)))
	d.Reset()

	assert.Equal(t, 1, vad.cleared)
	assert.Empty(t, d.window)
	assert.Empty(t, d.Result())
}
