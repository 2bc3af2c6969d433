// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	applog "voicedsp/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource replays a WAV file as if it were a capture device. The file's
// sample rate wins over the requested one; multi-channel files are reduced
// to their first channel and every bit depth is scaled to 16 bits.
type WAVSource struct {
	Path     string
	Loop     bool // Rewind at the end instead of ending the run.
	Realtime bool // Deliver one block per block period instead of as fast as possible.
}

func (s WAVSource) String() string {
	return fmt.Sprintf("wav file %s", s.Path)
}

// Open opens the file and validates its header.
func (s WAVSource) Open(format Format) (Capture, error) {
	if format.FramesPerBuffer <= 0 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", format.FramesPerBuffer)
	}

	file, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}

	c := &wavCapture{source: s, file: file}
	if err := c.rewind(); err != nil {
		file.Close()
		return nil, err
	}

	wavFormat := c.decoder.Format()
	c.channels = wavFormat.NumChannels
	c.bitDepth = int(c.decoder.BitDepth)
	switch c.bitDepth {
	case 8, 16, 24, 32:
	default:
		file.Close()
		return nil, fmt.Errorf("%s: unsupported bit depth %d", s.Path, c.bitDepth)
	}
	if c.channels < 1 || wavFormat.SampleRate <= 0 {
		file.Close()
		return nil, fmt.Errorf("%s: invalid format %d channels at %d Hz", s.Path, c.channels, wavFormat.SampleRate)
	}

	c.format = Format{
		SampleRate:      float64(wavFormat.SampleRate),
		Channels:        c.channels,
		BitDepth:        16,
		FramesPerBuffer: format.FramesPerBuffer,
	}
	c.pcm = &audio.IntBuffer{
		Format: wavFormat,
		Data:   make([]int, format.FramesPerBuffer*c.channels),
	}
	c.period = c.format.BlockPeriod()

	applog.Infof("WAVSource: Opened %s (%d Hz, %d channels, %d bit)",
		s.Path, wavFormat.SampleRate, c.channels, c.bitDepth)
	return c, nil
}

type wavCapture struct {
	source  WAVSource
	file    *os.File
	decoder *wav.Decoder
	pcm     *audio.IntBuffer

	format   Format
	channels int
	bitDepth int

	period time.Duration
	next   time.Time // Realtime deadline of the next block.
	ended  bool
}

// rewind positions the decoder at the start of the file.
func (c *wavCapture) rewind() error {
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	c.decoder = wav.NewDecoder(c.file)
	if !c.decoder.IsValidFile() {
		return fmt.Errorf("%s: not a valid WAV file", c.source.Path)
	}
	return nil
}

func (c *wavCapture) Read(buf []int16) error {
	if c.source.Realtime {
		c.pace()
	}

	filled, err := c.fill(buf, 0)
	if err != nil {
		return err
	}
	if filled == 0 {
		if !c.source.Loop || c.ended {
			return ErrEndOfStream
		}
		// An empty file would loop forever.
		c.ended = true
		if err := c.rewind(); err != nil {
			return err
		}
		if filled, err = c.fill(buf, 0); err != nil {
			return err
		}
		if filled == 0 {
			return ErrEndOfStream
		}
	}
	c.ended = false

	// The last block of the file is padded with silence.
	for i := filled; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// fill decodes into buf starting at offset and returns the number of
// samples now in buf.
func (c *wavCapture) fill(buf []int16, offset int) (int, error) {
	for offset < len(buf) {
		want := (len(buf) - offset) * c.channels
		c.pcm.Data = c.pcm.Data[:want]
		n, err := c.decoder.PCMBuffer(c.pcm)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return offset, err
		}
		frames := n / c.channels
		for i := 0; i < frames; i++ {
			buf[offset+i] = c.toInt16(c.pcm.Data[i*c.channels])
		}
		offset += frames
		if frames == 0 {
			break
		}
	}
	return offset, nil
}

func (c *wavCapture) toInt16(v int) int16 {
	switch c.bitDepth {
	case 8:
		// 8-bit PCM is unsigned.
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}

func (c *wavCapture) pace() {
	now := time.Now()
	if c.next.IsZero() || now.After(c.next.Add(c.period)) {
		// First block, or we fell behind by more than a block: resync.
		c.next = now
	}
	if wait := time.Until(c.next); wait > 0 {
		time.Sleep(wait)
	}
	c.next = c.next.Add(c.period)
}

func (c *wavCapture) Format() Format { return c.format }

func (c *wavCapture) Close() error {
	return c.file.Close()
}
