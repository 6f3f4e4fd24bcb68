package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV stores PCM16 mono audio as a WAV file.
func WriteWAV(path string, pcm []byte, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	samples := len(pcm) / 2
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, samples),
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = int(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ReadWAV loads a PCM WAV file as mono float samples, averaging channels.
func ReadWAV(path string) (AudioBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioBuffer{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return AudioBuffer{}, fmt.Errorf("%s: not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err == nil && dec.BitDepth == 0 {
		err = errors.New("missing bit depth")
	}
	if err != nil {
		return AudioBuffer{}, fmt.Errorf("%s: %w", path, err)
	}

	channels := max(buf.Format.NumChannels, 1)
	scale := float32(int(1) << (dec.BitDepth - 1))
	out := make([]float32, len(buf.Data)/channels)
	for i := range out {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c])
		}
		out[i] = sum / float32(channels) / scale
	}
	return AudioBuffer{Samples: out, SampleRate: buf.Format.SampleRate}, nil
}

// WavArchiver keeps the audio of each activation for offline inspection.
type WavArchiver struct {
	Dir        string
	SampleRate int
}

// Save writes pcm to Dir/<id>.wav.
func (a WavArchiver) Save(id string, pcm []byte) error {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return err
	}
	return WriteWAV(filepath.Join(a.Dir, id+".wav"), pcm, a.SampleRate)
}

// trailingSilence is appended to file input so the VAD sees the utterance end.
const trailingSilence = 1.5 // seconds

// FileSource replays a WAV file in place of the microphone, once per Open.
type FileSource struct {
	samples      []float32
	frameSamples int
	mu           sync.Mutex
	open         bool
}

// NewFileSource loads path and converts it to sampleRate.
func NewFileSource(path string, sampleRate, frameSamples int) (*FileSource, error) {
	buf, err := ReadWAV(path)
	if err != nil {
		return nil, err
	}
	samples := buf.Samples
	if buf.SampleRate > sampleRate {
		samples = NewPolyphaseResampler(buf.SampleRate, sampleRate).Resample(samples)
	} else if buf.SampleRate < sampleRate {
		samples = ResampleInPlace(samples, buf.SampleRate, sampleRate)
	}
	samples = append(samples, make([]float32, int(trailingSilence*float64(sampleRate)))...)
	return &FileSource{samples: samples, frameSamples: frameSamples}, nil
}

// Open starts a new replay.
func (s *FileSource) Open() (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil, errors.New("a capture stream is already open")
	}
	s.open = true
	return &fileStream{source: s}, nil
}

// Close is a no-op.
func (s *FileSource) Close() {}

type fileStream struct {
	source *FileSource
	pos    int
	closed bool
}

// Read returns io.EOF once the file and trailing silence are exhausted.
func (st *fileStream) Read(ctx context.Context) ([]byte, error) {
	if st.closed {
		return nil, ErrStreamClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if st.pos >= len(st.source.samples) {
		return nil, io.EOF
	}
	end := min(st.pos+st.source.frameSamples, len(st.source.samples))
	frame := Float32ToPCM16(st.source.samples[st.pos:end])
	st.pos = end
	return frame, nil
}

func (st *fileStream) Close() error {
	if st.closed {
		return ErrStreamClosed
	}
	st.closed = true
	st.source.mu.Lock()
	st.source.open = false
	st.source.mu.Unlock()
	return nil
}
