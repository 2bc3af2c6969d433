// SPDX-License-Identifier: MIT
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"voicedsp/cmd"
	"voicedsp/internal/analysis"
	"voicedsp/internal/audio"
	"voicedsp/internal/config"
	"voicedsp/internal/dsp"
	applog "voicedsp/internal/log"
	"voicedsp/internal/transport"
	"voicedsp/internal/transport/udp"
	"voicedsp/internal/tui"
	"voicedsp/pkg/build"
)

// main is the entry point for the analyzer. The program flow is divided
// into three phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load the configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Start the capture worker and the delivery goroutine
//   - Hand every spectrum to the TUI and the network consumers
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or the user quitting
//   - Stop the engine, then close the consumers
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds carry no ldflags and keep the defaults.
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v, using development metadata", err)
	}

	options, err := cmd.Execute()
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if !options.Run {
		return
	}
	cfg := options.Config
	applog.SetLevel(cfg.Level())

	switch cfg.Command {
	case cmd.CommandList:
		err = listDevices()
	case cmd.CommandAnalyze:
		err = analyzeFile(cfg)
	default:
		err = runLive(options)
	}
	if err != nil {
		applog.Fatalf("%v", err)
	}
}

// listDevices prints the PortAudio devices.
func listDevices() error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return audio.ListDevices()
}

// sourceFor returns the capture collaborator selected by cfg.
func sourceFor(cfg *config.Config) audio.Source {
	if cfg.Audio.Source == config.SourceWAV {
		return audio.WAVSource{
			Path:     cfg.Audio.WAVPath,
			Loop:     cfg.Audio.WAVLoop,
			Realtime: cfg.Audio.WAVRealtime,
		}
	}
	return audio.DeviceSource{
		DeviceID:   cfg.Audio.InputDevice,
		LowLatency: cfg.Audio.LowLatency,
	}
}

// analyzeFile runs the pipeline over a WAV file as fast as it decodes and
// prints one line per block. It drives the processor directly so that no
// block is dropped.
func analyzeFile(cfg *config.Config) error {
	capture, err := sourceFor(cfg).Open(audio.Format{
		SampleRate:      cfg.Audio.SampleRate,
		Channels:        1,
		BitDepth:        16,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	})
	if err != nil {
		return err
	}
	defer capture.Close()

	format := capture.Format()
	procConfig, err := audio.ProcessorConfig(cfg, format)
	if err != nil {
		return err
	}
	processor, err := dsp.NewProcessor(procConfig)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.Audio.WAVPath, err)
	}
	analyzer := analysis.NewAnalyzer(
		analysis.VoiceBands(cfg.DSP.LowCutoffHz, cfg.DSP.HighCutoffHz, format.SampleRate), nil)

	block := make([]int16, format.FramesPerBuffer)
	mags := make([]float32, processor.Bins())

	fmt.Printf("%6s  %11s  %9s  %s\n", "block", "peak", "magnitude", "voice band")
	var seq uint64
	for {
		err := capture.Read(block)
		if errors.Is(err, audio.ErrEndOfStream) {
			break
		}
		if err != nil {
			return err
		}
		if err := processor.ProcessInto(mags, block); err != nil {
			return err
		}
		seq++

		s := analyzer.Summarize(transport.Frame{
			Sequence:   seq,
			SampleRate: format.SampleRate,
			FFTSize:    processor.FFTSize(),
			Magnitudes: mags,
		})
		voice := 0.0
		for _, b := range s.Bands {
			if b.Name == analysis.BandVoice {
				voice = b.Share
			}
		}
		fmt.Printf("%6d  %8.1f Hz  %9.2f  %3.0f%%\n", s.Sequence, s.PeakHz, s.PeakValue, voice*100)
	}

	applog.Infof("Analyze: %d blocks of %d samples at %.0f Hz", seq, format.FramesPerBuffer, format.SampleRate)
	return nil
}

// runLive captures until the user quits (TUI) or a signal arrives
// (headless).
func runLive(options *cmd.Options) error {
	cfg := options.Config

	if cfg.Audio.Source == config.SourceDevice {
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
	}

	if options.Pick {
		sel, err := tui.PickDevice()
		if err != nil {
			return err
		}
		if !sel.Chosen {
			return nil
		}
		cfg.Audio.InputDevice = sel.Device.ID
		cfg.Audio.SampleRate = sel.SampleRate
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("picked device: %w", err)
		}
	}

	var (
		sinks   transport.Fanout
		closers []func() error
		view    *tui.Sink
	)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				applog.Warnf("Shutdown: %v", err)
			}
		}
	}()

	if !options.Headless {
		view = tui.NewSink()
		sinks = append(sinks, view)
	}

	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress, cfg.Transport.WebSocketMinInterval)
		if err != nil {
			return fmt.Errorf("websocket: %w", err)
		}
		closers = append(closers, ws.Close)
		sinks = append(sinks, ws)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender)
		if err != nil {
			sender.Close()
			return err
		}
		publisher.Start()
		closers = append(closers, publisher.Close)
		sinks = append(sinks, publisher)
	}

	if options.Headless || cfg.Transport.LogFrames {
		sinks = append(sinks, transport.NewLoggingTransport())
	}

	engine, err := audio.NewEngine(cfg, sourceFor(cfg), sinks)
	if err != nil {
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	if options.Headless {
		return runHeadless(engine)
	}

	// The TUI owns the terminal; logs go to a file until it exits.
	logPath := filepath.Join(os.TempDir(), "voicedsp.log")
	if logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		applog.SetOutput(logFile)
		defer func() {
			applog.SetOutput(os.Stderr)
			logFile.Close()
		}()
	}

	analyzer := analysis.NewAnalyzer(
		analysis.VoiceBands(cfg.DSP.LowCutoffHz, cfg.DSP.HighCutoffHz, cfg.Audio.SampleRate),
		analysis.NewVoiceDetector(0, 0.5))
	title := fmt.Sprintf("%s · %s", build.GetBuildFlags().Name, sourceFor(cfg))
	uiErr := tui.RunSpectrum(engine, analyzer, title, view)

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := engine.Stop(); err != nil && uiErr == nil {
		// Already shown in the TUI; keep the exit status quiet.
		applog.Warnf("Engine: last run ended with %v", err)
	}
	return uiErr
}

// runHeadless runs until SIGINT/SIGTERM or the end of the capture.
func runHeadless(engine *audio.Engine) error {
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	if err := engine.Start(); err != nil {
		return err
	}
	applog.Infof("Engine: running headless, interrupt to stop")

	var runErr error
	select {
	case sig := <-done:
		applog.Infof("Engine: received %s", sig)
		runErr = engine.Stop()
	case <-engine.Done():
		runErr = engine.Wait()
	}

	stats := engine.Stats()
	applog.Infof("Engine: %d blocks, %d delivered, %d dropped, %d overflows",
		stats.Blocks, stats.Delivered, stats.Dropped, stats.Overflows)

	var captureErr *audio.CaptureError
	if errors.As(runErr, &captureErr) {
		return fmt.Errorf("capture %s failed: %w", captureErr.Op, captureErr.Err)
	}
	return runErr
}
