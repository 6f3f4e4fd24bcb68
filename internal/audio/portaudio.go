package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSource captures through PortAudio's blocking stream API.
// Frames are read directly as int16 at the target rate.
type PortAudioSource struct {
	sampleRate   int
	frameSamples int
	mu           sync.Mutex
	open         bool
	terminated   bool
}

// NewPortAudioSource initializes PortAudio.
func NewPortAudioSource(sampleRate, frameSamples int) (*PortAudioSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &PortAudioSource{sampleRate: sampleRate, frameSamples: frameSamples}, nil
}

// Open starts a default input stream.
func (s *PortAudioSource) Open() (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return nil, errors.New("audio source closed")
	}
	if s.open {
		return nil, errors.New("a capture stream is already open")
	}

	buf := make([]int16, s.frameSamples)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(s.sampleRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	s.open = true
	return &portAudioStream{source: s, stream: stream, buf: buf}, nil
}

// Close terminates PortAudio.
func (s *PortAudioSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.terminated {
		_ = portaudio.Terminate()
		s.terminated = true
	}
}

type portAudioStream struct {
	source *PortAudioSource
	stream *portaudio.Stream
	buf    []int16
	closed bool
}

func (st *portAudioStream) Read(ctx context.Context) ([]byte, error) {
	if st.closed {
		return nil, ErrStreamClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Input overflow only means frames were lost while we were busy; keep going.
	if err := st.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return nil, fmt.Errorf("read input stream: %w", err)
	}
	return Int16ToPCM16(st.buf), nil
}

func (st *portAudioStream) Close() error {
	if st.closed {
		return ErrStreamClosed
	}
	st.closed = true

	stopErr := st.stream.Stop()
	closeErr := st.stream.Close()

	st.source.mu.Lock()
	st.source.open = false
	st.source.mu.Unlock()

	return errors.Join(stopErr, closeErr)
}
