package audioio

// Voice is one scheduled chunk of audio on an Output.
type Voice interface {
	// Start is the clock time the voice begins playing.
	Start() float64

	// Duration is the length of the voice in seconds.
	Duration() float64

	// Stop silences the voice immediately. Safe to call repeatedly.
	Stop()

	// Done is closed once the voice has finished playing or was stopped.
	Done() <-chan struct{}
}

// Output is an audio clock with a schedule of voices. Time is measured
// in seconds of rendered audio since the output was opened.
type Output interface {
	// Now returns the current clock time.
	Now() float64

	// SampleRate returns the output rate.
	SampleRate() int

	// Schedule queues mono samples to start at clock time at.
	// A start in the past plays from the next rendered frame.
	Schedule(samples []float32, at float64) (Voice, error)

	// Close stops every voice and releases the device.
	Close() error

	// Name returns the backend name.
	Name() string
}

// OutputFactory opens a new output clock at the given sample rate.
type OutputFactory func(sampleRate int) (Output, error)

// OutputStats contains statistics about an output.
type OutputStats struct {
	// Frames is the number of frames rendered.
	Frames int64 `json:"frames"`

	// Voices is the number of voices scheduled.
	Voices int64 `json:"voices"`

	// Active is the number of voices not yet finished.
	Active int `json:"active"`
}
