// Package audio provides microphone capture streams and speaker playback.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// Capture defaults match what the speech decoder expects.
const (
	DefaultSampleRate = 16000
	// DefaultFrameSamples is the chunk handed to the decoder per read (250ms at 16kHz).
	DefaultFrameSamples = 4000
)

// ErrStreamClosed is returned when a closed stream is used.
var ErrStreamClosed = errors.New("audio stream closed")

// Stream is one open capture session. Read returns the next frame of
// little-endian signed 16-bit mono PCM, blocking until it is complete.
type Stream interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Source opens capture streams on the default input device.
// At most one stream should be open at a time.
type Source interface {
	Open() (Stream, error)
	Close()
}

// Ring buffer configuration constants.
const (
	// ringBufferSize is the number of sample chunks the ring buffer can hold.
	// At 16kHz with 32ms chunks (512 samples), this provides ~4 seconds of buffer.
	ringBufferSize = 128

	// maxSamplesPerChunk is the maximum samples per audio callback chunk.
	maxSamplesPerChunk = 2048
)

// audioChunk represents a chunk of audio samples in the ring buffer.
type audioChunk struct {
	samples []float32
	len     int
}

// ringBuffer is a lock-free single-producer single-consumer ring buffer.
// The malgo callback produces, Stream.Read consumes.
type ringBuffer struct {
	chunks    [ringBufferSize]audioChunk
	head      atomic.Uint64
	tail      atomic.Uint64
	dropCount atomic.Uint64
	logger    *slog.Logger
}

func newRingBuffer(logger *slog.Logger) *ringBuffer {
	rb := &ringBuffer{logger: logger}
	for i := range rb.chunks {
		rb.chunks[i].samples = make([]float32, maxSamplesPerChunk)
	}
	return rb
}

// push adds samples to the ring buffer.
// Returns false if buffer is full, causing samples to be dropped.
func (rb *ringBuffer) push(samples []float32) bool {
	head := rb.head.Load()
	tail := rb.tail.Load()

	if head-tail >= ringBufferSize {
		count := rb.dropCount.Add(1)
		if count%100 == 0 {
			rb.logger.Warn("⚠️  Audio ring buffer full", "dropped_chunks", count)
		}
		return false
	}

	slot := &rb.chunks[head%ringBufferSize]
	slot.len = copy(slot.samples, samples)

	rb.head.Add(1)
	return true
}

// pop copies the oldest chunk into dst and returns the extended slice.
// ok is false when the buffer is empty.
func (rb *ringBuffer) pop(dst []float32) ([]float32, bool) {
	head := rb.head.Load()
	tail := rb.tail.Load()

	if head == tail {
		return dst, false
	}

	slot := &rb.chunks[tail%ringBufferSize]
	dst = append(dst, slot.samples[:slot.len]...)

	rb.tail.Add(1)
	return dst, true
}

// MalgoSource captures from the default input device with miniaudio.
// The audio context lives as long as the source; a device is created per stream.
type MalgoSource struct {
	ctx          *malgo.AllocatedContext
	sampleRate   uint32
	frameSamples int
	logger       *slog.Logger
	open         atomic.Bool
}

// NewMalgoSource initializes the audio context.
func NewMalgoSource(sampleRate, frameSamples int, logger *slog.Logger) (*MalgoSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	return &MalgoSource{
		ctx:          ctx,
		sampleRate:   uint32(sampleRate),
		frameSamples: frameSamples,
		logger:       logger,
	}, nil
}

// Open starts a capture device and returns a stream reading from it.
func (s *MalgoSource) Open() (Stream, error) {
	if s.ctx == nil {
		return nil, errors.New("audio source closed")
	}
	if !s.open.CompareAndSwap(false, true) {
		return nil, errors.New("a capture stream is already open")
	}

	st, err := s.openStream()
	if err != nil {
		s.open.Store(false)
		return nil, err
	}
	return st, nil
}

func (s *MalgoSource) openStream() (*malgoStream, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = s.sampleRate
	deviceConfig.PeriodSizeInMilliseconds = 32

	// Query actual device sample rate (may differ from requested)
	tempDevice, err := malgo.InitDevice(s.ctx.Context, deviceConfig, malgo.DeviceCallbacks{})
	if err != nil {
		return nil, fmt.Errorf("failed to query capture device: %w", err)
	}
	deviceRate := tempDevice.SampleRate()
	tempDevice.Uninit()

	st := &malgoStream{
		source:       s,
		ring:         newRingBuffer(s.logger),
		frameSamples: s.frameSamples,
		deviceRate:   deviceRate,
		targetRate:   s.sampleRate,
	}
	if deviceRate > s.sampleRate {
		st.resampler = NewPolyphaseResampler(int(deviceRate), int(s.sampleRate))
		s.logger.Debug("🔄 Audio resampling (polyphase)", "from_hz", deviceRate, "to_hz", s.sampleRate)
	} else if deviceRate < s.sampleRate {
		st.upsampler = NewResampler(int(deviceRate), int(s.sampleRate))
		s.logger.Debug("🔄 Audio resampling (linear)", "from_hz", deviceRate, "to_hz", s.sampleRate)
	}

	// Runs in the audio thread: must be fast and never block.
	onRecvFrames := func(_, pInputSamples []byte, _ uint32) {
		samples := bytesToFloat32(pInputSamples)
		if len(samples) > 0 {
			st.ring.push(samples)
		}
		returnFloat32Buffer(samples)
	}

	device, err := malgo.InitDevice(s.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}
	st.device = device
	return st, nil
}

// Close releases the audio context.
func (s *MalgoSource) Close() {
	if s.ctx != nil {
		_ = s.ctx.Uninit()
		s.ctx.Free()
		s.ctx = nil
	}
}

// malgoStream accumulates callback chunks into fixed-size PCM16 frames.
type malgoStream struct {
	source       *MalgoSource
	device       *malgo.Device
	ring         *ringBuffer
	resampler    *PolyphaseResampler
	upsampler    *Resampler
	frameSamples int
	deviceRate   uint32
	targetRate   uint32
	pending      []float32
	raw          []float32
	closeOnce    sync.Once
	closed       atomic.Bool
}

// pollInterval is how long Read sleeps when the ring buffer is empty.
const pollInterval = time.Millisecond

func (st *malgoStream) Read(ctx context.Context) ([]byte, error) {
	for len(st.pending) < st.frameSamples {
		if st.closed.Load() {
			return nil, ErrStreamClosed
		}

		var ok bool
		st.raw, ok = st.ring.pop(st.raw[:0])
		if !ok {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(pollInterval):
			}
			continue
		}

		chunk := st.raw
		switch {
		case st.resampler != nil:
			chunk = st.resampler.Resample(chunk)
		case st.upsampler != nil:
			chunk = st.upsampler.Resample(chunk)
		}
		st.pending = append(st.pending, chunk...)
	}

	frame := Float32ToPCM16(st.pending[:st.frameSamples])
	st.pending = append(st.pending[:0], st.pending[st.frameSamples:]...)
	return frame, nil
}

func (st *malgoStream) Close() error {
	err := ErrStreamClosed
	st.closeOnce.Do(func() {
		st.closed.Store(true)
		if st.device != nil {
			_ = st.device.Stop()
			st.device.Uninit()
			st.device = nil
		}
		st.source.open.Store(false)
		err = nil
	})
	return err
}
