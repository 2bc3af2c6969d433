// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrEndOfStream is returned by Capture.Read when a finite source has
	// no more blocks. It ends a run without being a capture failure.
	ErrEndOfStream = errors.New("end of audio stream")

	// ErrOverflow is returned by Capture.Read when the device dropped input
	// before the block was read. The block is still valid.
	ErrOverflow = errors.New("audio input overflowed")
)

// Format describes the blocks a capture delivers. Samples are always mono
// signed 16-bit.
type Format struct {
	SampleRate      float64 // Sample rate in Hz.
	Channels        int     // Channels requested from the device; blocks carry the first.
	BitDepth        int     // Bits per sample as delivered, always 16.
	FramesPerBuffer int     // Samples per block.
}

// BlockPeriod returns the capture time covered by one block.
func (f Format) BlockPeriod() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(math.Round(float64(f.FramesPerBuffer) / f.SampleRate * float64(time.Second)))
}

// Source opens captures. Each run of the Engine opens its own capture and
// closes it when the run ends.
type Source interface {
	Open(format Format) (Capture, error)
	String() string
}

// Capture is an open capture handle owned by a single goroutine.
type Capture interface {
	// Read fills buf with the next block, blocking until it is available.
	// len(buf) equals Format().FramesPerBuffer.
	Read(buf []int16) error
	// Format reports the format actually in use, which may differ from the
	// requested one (a device or file can dictate the sample rate).
	Format() Format
	Close() error
}

// CaptureError reports a failure to open or read the capture. It ends the
// run it occurred in.
type CaptureError struct {
	Op  string // "open", "read" or "close".
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
