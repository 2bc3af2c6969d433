// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"strings"

	"voicedsp/pkg/bitint"
)

// BlockFit decides how a captured block is mapped onto a power-of-two
// transform length.
type BlockFit int

const (
	// FitPad zero-pads the block up to the next power of two.
	FitPad BlockFit = iota
	// FitTruncate keeps the most recent previous-power-of-two samples.
	FitTruncate
)

func (f BlockFit) String() string {
	switch f {
	case FitPad:
		return "pad"
	case FitTruncate:
		return "truncate"
	default:
		return fmt.Sprintf("fit(%d)", int(f))
	}
}

// ParseBlockFit converts "pad" or "truncate" (case-insensitive) to a
// BlockFit.
func ParseBlockFit(name string) (BlockFit, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pad", "":
		return FitPad, nil
	case "truncate":
		return FitTruncate, nil
	default:
		return FitPad, fmt.Errorf("unknown block fit: '%s'", name)
	}
}

// ProcessorConfig describes one capture format and the analysis applied
// to it.
type ProcessorConfig struct {
	BlockSize    int        // Samples per captured block.
	SampleRate   float32    // Capture sample rate in Hz.
	LowCutoffHz  float32    // Band-pass lower edge.
	HighCutoffHz float32    // Band-pass upper edge.
	Window       WindowFunc // Window applied before the transform.
	Fit          BlockFit   // Block to transform length mapping.
	BlockReset   bool       // Reset filter state at every block.
}

// workspace holds pre-allocated buffers for one block.
type workspace struct {
	filtered []float32 // ...for band-passed samples, one per input sample
	real     []float32 // ...for windowed input, then transform output
	imag     []float32 // ...for the imaginary part
}

// Processor runs filter -> window -> FFT -> magnitude for each block. It
// owns its FilterState; successive blocks must come from the same stream.
type Processor struct {
	blockSize int
	fftSize   int
	dataLen   int // Samples taken from each filtered block.
	offset    int // Index of the first taken sample.

	sampleRate float32
	fit        BlockFit

	filter    *BandPass
	window    *Window
	plan      *Plan
	workspace workspace
}

// NewProcessor validates the configuration eagerly and pre-allocates all
// buffers the per-block path needs.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", cfg.BlockSize)
	}

	filter, err := NewBandPass(cfg.LowCutoffHz, cfg.HighCutoffHz, cfg.SampleRate,
		BandPassOptions{BlockReset: cfg.BlockReset})
	if err != nil {
		return nil, err
	}

	var fftSize int
	switch cfg.Fit {
	case FitPad:
		fftSize = bitint.NextPowerOfTwo(cfg.BlockSize)
	case FitTruncate:
		fftSize = bitint.PrevPowerOfTwo(cfg.BlockSize)
	default:
		return nil, fmt.Errorf("unknown block fit %d", int(cfg.Fit))
	}
	// A one-point transform has no usable bins.
	if fftSize < 2 {
		return nil, fmt.Errorf("%w: block of %d samples maps to a %d-point transform",
			ErrNotPowerOfTwo, cfg.BlockSize, fftSize)
	}

	dataLen := min(cfg.BlockSize, fftSize)
	win, err := NewWindow(cfg.Window, dataLen)
	if err != nil {
		return nil, err
	}
	plan, err := NewPlan(fftSize)
	if err != nil {
		return nil, err
	}

	return &Processor{
		blockSize:  cfg.BlockSize,
		fftSize:    fftSize,
		dataLen:    dataLen,
		offset:     cfg.BlockSize - dataLen,
		sampleRate: cfg.SampleRate,
		fit:        cfg.Fit,
		filter:     filter,
		window:     win,
		plan:       plan,
		workspace: workspace{
			filtered: make([]float32, cfg.BlockSize),
			real:     make([]float32, fftSize),
			imag:     make([]float32, fftSize),
		},
	}, nil
}

// Process returns a freshly allocated magnitude spectrum for block.
func (p *Processor) Process(block []int16) ([]float32, error) {
	out := make([]float32, p.Bins())
	if err := p.ProcessInto(out, block); err != nil {
		return nil, err
	}
	return out, nil
}

// ProcessInto writes the magnitude spectrum for block into dst, which must
// hold Bins() values. It does not allocate.
func (p *Processor) ProcessInto(dst []float32, block []int16) error {
	if len(block) != p.blockSize {
		return fmt.Errorf("%w: want %d samples, got %d", ErrBlockSize, p.blockSize, len(block))
	}
	if len(dst) != p.Bins() {
		return fmt.Errorf("destination length %d does not match required length %d", len(dst), p.Bins())
	}

	// The filter always sees the whole block so its state stays continuous.
	ws := &p.workspace
	ws.filtered = p.filter.Apply(block, ws.filtered)

	p.window.Apply(ws.real, ws.filtered[p.offset:])
	for i := p.dataLen; i < p.fftSize; i++ {
		ws.real[i] = 0
	}
	for i := range ws.imag {
		ws.imag[i] = 0
	}

	if err := p.plan.Transform(ws.real, ws.imag); err != nil {
		return err
	}
	MagnitudeInto(dst, ws.real, ws.imag)
	return nil
}

// Reset clears the filter state, as if the processor were rebuilt.
func (p *Processor) Reset() { p.filter.Reset() }

// FrequencyForBin returns the centre frequency in Hz of a magnitude bin,
// or 0 for out-of-range bins.
func (p *Processor) FrequencyForBin(bin int) float64 {
	if bin < 0 || bin >= p.Bins() {
		return 0
	}
	return float64(bin) * float64(p.sampleRate) / float64(p.fftSize)
}

// BlockSize returns the expected input block length.
func (p *Processor) BlockSize() int { return p.blockSize }

// FFTSize returns the transform length.
func (p *Processor) FFTSize() int { return p.fftSize }

// Bins returns the magnitude spectrum length, FFTSize()/2.
func (p *Processor) Bins() int { return p.fftSize / 2 }

// SampleRate returns the sample rate in Hz.
func (p *Processor) SampleRate() float32 { return p.sampleRate }

// Filter exposes the band-pass stage.
func (p *Processor) Filter() *BandPass { return p.filter }
