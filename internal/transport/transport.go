// SPDX-License-Identifier: MIT
package transport

import "time"

// Frame is one magnitude spectrum handed from the capture worker to its
// consumers. Magnitudes is owned by the frame; a consumer that keeps it
// beyond OnSpectrumReady may do so without copying, but must not write to
// it because the same frame can be fanned out to several sinks.
type Frame struct {
	Sequence   uint64    `json:"seq"`        // Monotonic per engine run, starting at 1.
	Timestamp  time.Time `json:"ts"`         // When the block finished capturing.
	SampleRate float64   `json:"sampleRate"` // Capture sample rate in Hz.
	FFTSize    int       `json:"fftSize"`    // Transform length, 2*len(Magnitudes).
	Magnitudes []float32 `json:"magnitudes"` // N/2 non-negative bins.
}

// BinFrequency returns the centre frequency in Hz of bin i.
func (f Frame) BinFrequency(i int) float64 {
	if f.FFTSize == 0 || i < 0 || i >= len(f.Magnitudes) {
		return 0
	}
	return float64(i) * f.SampleRate / float64(f.FFTSize)
}

// Clone returns a deep copy of the frame.
func (f Frame) Clone() Frame {
	out := f
	out.Magnitudes = make([]float32, len(f.Magnitudes))
	copy(out.Magnitudes, f.Magnitudes)
	return out
}

// Sink receives spectra from the engine's delivery goroutine, one call per
// processed block and in capture order. Implementations schedule their own
// redraw or I/O; a slow sink delays only later deliveries, never capture.
type Sink interface {
	OnSpectrumReady(frame Frame)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(frame Frame)

// OnSpectrumReady calls f(frame).
func (f SinkFunc) OnSpectrumReady(frame Frame) { f(frame) }

// Fanout delivers each frame to every sink in order.
type Fanout []Sink

// OnSpectrumReady implements Sink.
func (fo Fanout) OnSpectrumReady(frame Frame) {
	for _, s := range fo {
		if s != nil {
			s.OnSpectrumReady(frame)
		}
	}
}

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}
