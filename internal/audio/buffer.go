package audio

// Buffer holds a decoded waveform. Samples are interleaved 16-bit PCM values
// stored as ints, matching what the wav codec produces. A Buffer belongs to
// exactly one request and is never shared across requests.
type Buffer struct {
	Samples    []int
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel).
func (b *Buffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// DurationSec derives duration from frame count and sample rate.
func (b *Buffer) DurationSec() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}
