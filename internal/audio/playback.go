package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// playbackRingSize is the number of samples the ring buffer can hold
// (~11 seconds at 48kHz), enough for any spoken reply.
const playbackRingSize = 524288

// AudioBuffer holds audio samples with metadata.
type AudioBuffer struct {
	Samples    []float32 // Mono samples in [-1, 1]
	SampleRate int       // Sample rate in Hz (e.g., 24000 for TTS)
}

// playbackRing is a lock-free single-producer single-consumer ring buffer for playback.
type playbackRing struct {
	samples [playbackRingSize]float32
	head    atomic.Uint64
	tail    atomic.Uint64
}

// push adds samples to the ring buffer. Returns number of samples written.
func (rb *playbackRing) push(samples []float32) int {
	head := rb.head.Load()
	tail := rb.tail.Load()

	toWrite := min(len(samples), playbackRingSize-int(head-tail))
	for i := 0; i < toWrite; i++ {
		rb.samples[(head+uint64(i))%playbackRingSize] = samples[i]
	}

	rb.head.Add(uint64(toWrite))
	return toWrite
}

// pop retrieves a sample from the ring buffer.
func (rb *playbackRing) pop() (float32, bool) {
	head := rb.head.Load()
	tail := rb.tail.Load()

	if head == tail {
		return 0, false
	}

	sample := rb.samples[tail%playbackRingSize]
	rb.tail.Add(1)
	return sample, true
}

func (rb *playbackRing) isEmpty() bool {
	return rb.head.Load() == rb.tail.Load()
}

func (rb *playbackRing) clear() {
	rb.tail.Store(rb.head.Load())
}

// Player plays audio on a persistent output device.
// Play blocks until the buffer has been played out.
type Player struct {
	ctx              *malgo.AllocatedContext
	device           *malgo.Device
	deviceSampleRate uint32
	bufferMs         uint32
	interrupt        atomic.Bool
	playing          atomic.Bool
	ring             *playbackRing
	mu               sync.Mutex // serializes Play calls
	completeChan     chan struct{}
	logger           *slog.Logger
}

// NewPlayer creates a player with a persistent playback device.
// bufferMs is the device period (20ms for wired, 100ms for Bluetooth, 0 for 100ms).
func NewPlayer(bufferMs uint32, logger *slog.Logger) (*Player, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	if bufferMs == 0 {
		bufferMs = 100
	}

	p := &Player{
		ctx:              ctx,
		deviceSampleRate: deviceNativeSampleRate(),
		bufferMs:         bufferMs,
		ring:             &playbackRing{},
		completeChan:     make(chan struct{}, 1),
		logger:           logger,
	}

	if err := p.initDevice(); err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, err
	}

	logger.Debug("🔊 Playback device started", "sample_rate", p.deviceSampleRate, "buffer_ms", bufferMs)
	return p, nil
}

func (p *Player) initDevice() error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = p.deviceSampleRate
	deviceConfig.PeriodSizeInMilliseconds = p.bufferMs

	onSendFrames := func(pOutputSample, _ []byte, framecount uint32) {
		interrupted := p.interrupt.Load()

		for i := 0; i < int(framecount); i++ {
			var sample float32
			if !interrupted {
				if s, ok := p.ring.pop(); ok {
					sample = s
				}
			}
			binary.LittleEndian.PutUint32(pOutputSample[i*4:], math.Float32bits(sample))
		}

		if p.playing.Load() && (p.ring.isEmpty() || interrupted) {
			p.playing.Store(false)
			select {
			case p.completeChan <- struct{}{}:
			default:
			}
		}
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	// Outputs silence until samples are queued.
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	p.device = device
	return nil
}

// deviceNativeSampleRate falls back to 48000 Hz if the default config has none.
func deviceNativeSampleRate() uint32 {
	defaultConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	if defaultConfig.SampleRate > 0 {
		return defaultConfig.SampleRate
	}
	return 48000
}

// Play queues the buffer and blocks until playback completes or is interrupted.
func (p *Player) Play(buffer AudioBuffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device == nil {
		return fmt.Errorf("player closed")
	}
	if buffer.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", buffer.SampleRate)
	}

	samples := buffer.Samples
	if buffer.SampleRate != int(p.deviceSampleRate) {
		samples = ResampleInPlace(buffer.Samples, buffer.SampleRate, int(p.deviceSampleRate))
	}
	if len(samples) == 0 {
		return nil
	}

	p.interrupt.Store(false)
	// Drain a completion left over from a previous call.
	select {
	case <-p.completeChan:
	default:
	}

	if written := p.ring.push(samples); written < len(samples) {
		p.logger.Warn("⚠️  Playback buffer overflow", "dropped_samples", len(samples)-written)
	}
	p.playing.Store(true)

	deadline := time.NewTimer(time.Duration(len(samples)/int(p.deviceSampleRate)+2) * time.Second)
	defer deadline.Stop()

	for p.playing.Load() {
		select {
		case <-p.completeChan:
		case <-deadline.C:
			p.logger.Warn("⚠️  Playback timeout exceeded")
			p.ring.clear()
			p.playing.Store(false)
			return nil
		}
	}
	return nil
}

// Interrupt stops current playback.
func (p *Player) Interrupt() {
	p.interrupt.Store(true)
	p.ring.clear()
	p.playing.Store(false)
	select {
	case p.completeChan <- struct{}{}:
	default:
	}
}

// Close releases all resources.
func (p *Player) Close() {
	p.Interrupt()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device != nil {
		_ = p.device.Stop()
		p.device.Uninit()
		p.device = nil
	}
	if p.ctx != nil {
		_ = p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
}
