// SPDX-License-Identifier: MIT
/*
Package audio implements the streaming spectrum engine:
- Capture sources (PortAudio input device, WAV file)
- A worker goroutine that owns the capture for the length of a run
- Per-block band-pass, window, FFT and magnitude extraction
- A bounded mailbox hand-off to a separate delivery goroutine

Thread Safety:
- Run state lives in an atomic, counters are atomics
- The worker pre-allocates its buffers, only the delivered frame is new
- The processor and its filter state are touched by the worker only
*/
package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"voicedsp/internal/config"
	"voicedsp/internal/dsp"
	applog "voicedsp/internal/log"
	"voicedsp/internal/transport"

	"github.com/mdobak/go-xerrors"
)

// ErrAlreadyRunning is returned by Start while a run is in progress.
var ErrAlreadyRunning = errors.New("engine is already running")

// State is the lifecycle state of an Engine.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Stats are counters for the current or most recent run.
type Stats struct {
	Blocks    uint64  // Blocks captured and processed.
	Delivered uint64  // Frames handed to the sink.
	Dropped   uint64  // Frames discarded because the mailbox was full.
	Overflows uint64  // Device overflows reported by the capture.
	InputPeak float64 // Peak level of the last block, 0.0-1.0.
}

// run is one Start/Stop cycle. Its channels are never reused.
type run struct {
	stop     chan struct{} // Closed to ask the worker to finish.
	stopOnce sync.Once
	done     chan struct{} // Closed after the run is fully torn down.
	mailbox  chan transport.Frame
	err      error // Set before done is closed.
}

func (r *run) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Engine runs capture -> filter -> window -> FFT -> magnitude on its own
// goroutine and hands every spectrum to a Sink on a second goroutine, so a
// slow consumer never stalls capture.
type Engine struct {
	source Source
	sink   transport.Sink

	format       Format
	procConfig   dsp.ProcessorConfig
	mailboxDepth int

	// processor is rebuilt when a capture reports a different format. It
	// is only used by the worker of the active run.
	processor *dsp.Processor

	state   atomic.Int32
	mu      sync.Mutex // Serializes Start/Stop and guards current.
	current *run

	blocks    atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	overflows atomic.Uint64
	peak      atomic.Int32
}

// NewEngine validates the DSP configuration eagerly and prepares an engine
// reading from source and delivering to sink. Nothing is opened until
// Start.
func NewEngine(cfg *config.Config, source Source, sink transport.Sink) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("engine: capture source cannot be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("engine: sink cannot be nil")
	}

	format := Format{
		SampleRate:      cfg.Audio.SampleRate,
		Channels:        1,
		BitDepth:        16,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	}
	procConfig, err := ProcessorConfig(cfg, format)
	if err != nil {
		return nil, err
	}
	processor, err := dsp.NewProcessor(procConfig)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	depth := cfg.Delivery.MailboxDepth
	if depth < 1 {
		depth = 1
	}

	applog.Infof("Engine: %s, %.0f Hz, %d frames per buffer, %d-point FFT, band %.0f-%.0f Hz, %s window",
		source, format.SampleRate, format.FramesPerBuffer, processor.FFTSize(),
		procConfig.LowCutoffHz, procConfig.HighCutoffHz, procConfig.Window)

	return &Engine{
		source:       source,
		sink:         sink,
		format:       format,
		procConfig:   procConfig,
		mailboxDepth: depth,
		processor:    processor,
	}, nil
}

// ProcessorConfig derives the per-block DSP settings for blocks of the
// given format.
func ProcessorConfig(cfg *config.Config, format Format) (dsp.ProcessorConfig, error) {
	window, err := dsp.ParseWindowFunc(cfg.DSP.Window)
	if err != nil {
		return dsp.ProcessorConfig{}, err
	}
	fit, err := dsp.ParseBlockFit(cfg.Audio.BlockFit)
	if err != nil {
		return dsp.ProcessorConfig{}, err
	}
	return dsp.ProcessorConfig{
		BlockSize:    format.FramesPerBuffer,
		SampleRate:   float32(format.SampleRate),
		LowCutoffHz:  float32(cfg.DSP.LowCutoffHz),
		HighCutoffHz: float32(cfg.DSP.HighCutoffHz),
		Window:       window,
		Fit:          fit,
		BlockReset:   cfg.DSP.BlockReset,
	}, nil
}

// Start opens the capture and begins a run. It returns ErrAlreadyRunning
// if a run is active, and a *CaptureError if the capture cannot be opened;
// in both cases the engine state is unchanged.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if State(e.state.Load()) != StateIdle {
		return ErrAlreadyRunning
	}

	capture, err := e.source.Open(e.format)
	if err != nil {
		return &CaptureError{Op: "open", Err: xerrors.New(err)}
	}

	if err := e.prepareProcessor(capture.Format()); err != nil {
		if cerr := capture.Close(); cerr != nil {
			applog.Warnf("Engine: Closing capture after failed start: %v", cerr)
		}
		return err
	}

	e.blocks.Store(0)
	e.delivered.Store(0)
	e.dropped.Store(0)
	e.overflows.Store(0)
	e.peak.Store(0)

	r := &run{
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		mailbox: make(chan transport.Frame, e.mailboxDepth),
	}
	e.current = r
	e.state.Store(int32(StateRunning))

	dispatched := make(chan struct{})
	go e.dispatch(r, dispatched)
	go e.work(r, capture, dispatched)

	applog.Infof("Engine: Started (%s)", e.source)
	return nil
}

// prepareProcessor makes the processor match the opened capture and clears
// its filter state for the new run.
func (e *Engine) prepareProcessor(actual Format) error {
	if float32(actual.SampleRate) == e.processor.SampleRate() && actual.FramesPerBuffer == e.processor.BlockSize() {
		e.processor.Reset()
		return nil
	}

	applog.Warnf("Engine: Capture runs at %.0f Hz / %d frames, rebuilding filter (requested %.0f Hz / %d frames)",
		actual.SampleRate, actual.FramesPerBuffer, e.format.SampleRate, e.format.FramesPerBuffer)
	procConfig := e.procConfig
	procConfig.SampleRate = float32(actual.SampleRate)
	procConfig.BlockSize = actual.FramesPerBuffer
	processor, err := dsp.NewProcessor(procConfig)
	if err != nil {
		return fmt.Errorf("engine: capture format %.0f Hz / %d frames: %w",
			actual.SampleRate, actual.FramesPerBuffer, err)
	}
	e.processor = processor
	return nil
}

// Stop asks the active run to finish after its current block and waits
// until the capture is closed and pending frames are delivered. It returns
// the same error as Wait. Stop on an idle engine is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	r := e.current
	if r == nil {
		e.mu.Unlock()
		return nil
	}
	if e.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		applog.Infof("Engine: Stopping")
	}
	r.requestStop()
	e.mu.Unlock()

	<-r.done
	return r.err
}

// Wait blocks until the current run ends and returns its failure, if
// any. A run that was stopped or reached the end of a finite source
// returns nil.
func (e *Engine) Wait() error {
	e.mu.Lock()
	r := e.current
	e.mu.Unlock()
	if r == nil {
		return nil
	}
	<-r.done
	return r.err
}

// Done returns a channel closed when the current run ends. With no run
// the channel is already closed.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return e.current.done
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Stats returns the counters of the current or most recent run.
func (e *Engine) Stats() Stats {
	return Stats{
		Blocks:    e.blocks.Load(),
		Delivered: e.delivered.Load(),
		Dropped:   e.dropped.Load(),
		Overflows: e.overflows.Load(),
		InputPeak: peakLevel(e.peak.Load()),
	}
}

// Format returns the requested capture format.
func (e *Engine) Format() Format {
	return e.format
}

// work is the capture loop. It owns capture until it returns.
func (e *Engine) work(r *run, capture Capture, dispatched <-chan struct{}) {
	format := capture.Format()
	processor := e.processor
	block := make([]int16, processor.BlockSize())
	bins := processor.Bins()

	var seq uint64
	var runErr error

loop:
	for {
		// The stop request is honoured between blocks only.
		select {
		case <-r.stop:
			break loop
		default:
		}

		err := capture.Read(block)
		switch {
		case err == nil:
		case errors.Is(err, ErrOverflow):
			e.overflows.Add(1)
			applog.Warnf("Engine: Input overflow, samples were lost before block %d", seq+1)
		case errors.Is(err, ErrEndOfStream):
			applog.Infof("Engine: %s ended after %d blocks", e.source, seq)
			break loop
		default:
			runErr = &CaptureError{Op: "read", Err: xerrors.New(err)}
			applog.Errorf("Engine: Capture failed after %d blocks: %v", seq, err)
			break loop
		}
		captured := time.Now()

		e.peak.Store(peakAmplitude(block))

		// Every frame owns its magnitudes; the worker never aliases them.
		mags := make([]float32, bins)
		if err := processor.ProcessInto(mags, block); err != nil {
			// Only reachable if the block and processor disagree in size.
			runErr = fmt.Errorf("engine: processing block %d: %w", seq+1, err)
			applog.Errorf("Engine: %v", runErr)
			break loop
		}
		e.blocks.Add(1)

		seq++
		e.deliver(r, transport.Frame{
			Sequence:   seq,
			Timestamp:  captured,
			SampleRate: format.SampleRate,
			FFTSize:    processor.FFTSize(),
			Magnitudes: mags,
		})
		if applog.GetLevel() == applog.LevelDebug {
			applog.Debugf("Engine: Block %d processed, input peak %.3f", seq, peakLevel(e.peak.Load()))
		}
	}

	if err := capture.Close(); err != nil {
		applog.Warnf("Engine: Closing capture: %v", err)
		if runErr == nil {
			runErr = &CaptureError{Op: "close", Err: xerrors.New(err)}
		}
	}

	// Let the dispatcher drain what is already queued.
	close(r.mailbox)
	<-dispatched

	r.err = runErr
	e.state.Store(int32(StateIdle))
	close(r.done)

	stats := e.Stats()
	applog.Infof("Engine: Stopped after %d blocks (%d delivered, %d dropped)",
		stats.Blocks, stats.Delivered, stats.Dropped)
}

// deliver queues frame without ever waiting for the consumer. When the
// mailbox is full the oldest pending frame is discarded, so the consumer
// always sees the newest spectra in capture order.
func (e *Engine) deliver(r *run, frame transport.Frame) {
	for {
		select {
		case r.mailbox <- frame:
			return
		default:
		}
		select {
		case <-r.mailbox:
			e.dropped.Add(1)
		default:
		}
	}
}

// dispatch hands queued frames to the sink until the mailbox is closed.
func (e *Engine) dispatch(r *run, dispatched chan<- struct{}) {
	defer close(dispatched)
	for frame := range r.mailbox {
		e.sink.OnSpectrumReady(frame)
		e.delivered.Add(1)
	}
}
