package audio

import "math"

// Resampler converts a mono stream between rates with linear interpolation.
// It keeps the read position across calls so chunk boundaries do not click.
// Good enough for upsampling speech; use PolyphaseResampler to downsample.
type Resampler struct {
	step float64 // input samples consumed per output sample
	pos  float64 // read position relative to the start of the next chunk
	last float32 // final sample of the previous chunk
}

// NewResampler returns a linear resampler from fromRate to toRate.
func NewResampler(fromRate, toRate int) *Resampler {
	return &Resampler{step: float64(fromRate) / float64(toRate)}
}

// Resample converts one chunk. The returned slice is newly allocated unless
// the rates are equal.
func (r *Resampler) Resample(input []float32) []float32 {
	if r.step == 1 || len(input) == 0 {
		return input
	}

	// Position -1 refers to r.last, so interpolation spans the boundary.
	output := make([]float32, 0, int(float64(len(input))/r.step)+1)
	for r.pos < float64(len(input)-1) {
		idx := int(math.Floor(r.pos))
		frac := float32(r.pos - float64(idx))

		a := r.last
		if idx >= 0 {
			a = input[idx]
		}
		b := input[idx+1]
		output = append(output, a+(b-a)*frac)
		r.pos += r.step
	}

	r.pos -= float64(len(input))
	r.last = input[len(input)-1]
	return output
}

// ResampleInPlace resamples a complete buffer in one shot.
func ResampleInPlace(input []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate {
		return input
	}
	return NewResampler(fromRate, toRate).Resample(input)
}

// polyphaseTaps is the FIR length of the anti-aliasing filter.
const polyphaseTaps = 64

// PolyphaseResampler downsamples with a Hamming-windowed sinc low-pass
// so that content above the target Nyquist does not fold into the band
// the recognizer listens to (e.g. 48kHz microphone to 16kHz).
type PolyphaseResampler struct {
	step    float64
	pos     float64
	filter  []float32
	history []float32 // last polyphaseTaps input samples
	work    []float32
}

// NewPolyphaseResampler returns a downsampler from fromRate to toRate.
// For toRate >= fromRate it degrades to a pass-through filter.
func NewPolyphaseResampler(fromRate, toRate int) *PolyphaseResampler {
	ratio := float64(toRate) / float64(fromRate)
	cutoff := 0.5
	if ratio < 1 {
		cutoff = ratio / 2
	}

	filter := make([]float32, polyphaseTaps)
	center := float64(polyphaseTaps-1) / 2
	var sum float32
	for i := range filter {
		n := float64(i) - center
		window := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(polyphaseTaps-1))
		filter[i] = float32(math.Sin(2*math.Pi*cutoff*n) / (math.Pi * n) * window)
		sum += filter[i]
	}
	// Unity gain at DC.
	for i := range filter {
		filter[i] /= sum
	}

	return &PolyphaseResampler{
		step:    1 / ratio,
		filter:  filter,
		history: make([]float32, polyphaseTaps),
	}
}

// Resample filters and decimates one chunk.
func (r *PolyphaseResampler) Resample(input []float32) []float32 {
	if r.step == 1 || len(input) == 0 {
		return input
	}

	r.work = append(append(r.work[:0], r.history...), input...)
	output := make([]float32, 0, int(float64(len(input))/r.step)+1)

	for r.pos < float64(len(input)) {
		end := int(r.pos) + polyphaseTaps // exclusive end in r.work
		var acc float32
		for j, c := range r.filter {
			acc += r.work[end-polyphaseTaps+j] * c
		}
		output = append(output, acc)
		r.pos += r.step
	}

	r.pos -= float64(len(input))
	copy(r.history, r.work[len(r.work)-polyphaseTaps:])
	return output
}
