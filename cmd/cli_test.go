// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voicedsp/internal/config"
)

func TestParseArgsDefaults(t *testing.T) {
	opts, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs() error = %v", err)
	}
	if !opts.Run || opts.Headless || opts.Pick {
		t.Errorf("options = %+v, want a plain run", opts)
	}

	cfg := opts.Config
	want := config.NewConfig()
	if cfg.Command != "" || cfg.Audio != want.Audio || cfg.DSP != want.DSP {
		t.Errorf("config = %+v, want the defaults", cfg)
	}
}

func TestParseArgsFlagsOverride(t *testing.T) {
	opts, err := ParseArgs([]string{
		"--headless",
		"--device", "3",
		"--sample-rate", "48000",
		"-b", "512",
		"--low-cut", "200",
		"--high-cut", "4000",
		"--window", "blackman",
		"--log-level", "debug",
		"--udp", "127.0.0.1:9999",
		"--ws", "127.0.0.1:8181",
	})
	if err != nil {
		t.Fatalf("ParseArgs() error = %v", err)
	}
	if !opts.Headless {
		t.Error("--headless not set")
	}

	cfg := opts.Config
	if cfg.Audio.InputDevice != 3 || cfg.Audio.SampleRate != 48000 || cfg.Audio.FramesPerBuffer != 512 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.DSP.LowCutoffHz != 200 || cfg.DSP.HighCutoffHz != 4000 || cfg.DSP.Window != "blackman" {
		t.Errorf("dsp = %+v", cfg.DSP)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	tr := cfg.Transport
	if !tr.UDPEnabled || tr.UDPTargetAddress != "127.0.0.1:9999" || !tr.WebSocketEnabled || tr.WebSocketAddress != "127.0.0.1:8181" {
		t.Errorf("transport = %+v", tr)
	}
}

func TestParseArgsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	yaml := `
audio:
  sample_rate: 16000
  frames_per_buffer: 256
dsp:
  high_cutoff_hz: 3000
transport:
  udp_enabled: true
  udp_send_interval: 20ms
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	// Flags win over the file.
	opts, err := ParseArgs([]string{"--config", path, "-b", "128"})
	if err != nil {
		t.Fatalf("ParseArgs() error = %v", err)
	}
	cfg := opts.Config
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.FramesPerBuffer != 128 || cfg.DSP.HighCutoffHz != 3000 {
		t.Errorf("config = %+v %+v", cfg.Audio, cfg.DSP)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPSendInterval != 20*time.Millisecond {
		t.Errorf("transport = %+v", cfg.Transport)
	}
}

func TestParseArgsCommands(t *testing.T) {
	opts, err := ParseArgs([]string{"list"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Config.Command != CommandList {
		t.Errorf("command = %q, want %q", opts.Config.Command, CommandList)
	}

	opts, err = ParseArgs([]string{"analyze", "speech.wav", "--window", "hamming"})
	if err != nil {
		t.Fatal(err)
	}
	cfg := opts.Config
	if cfg.Command != CommandAnalyze || cfg.Audio.Source != config.SourceWAV || cfg.Audio.WAVPath != "speech.wav" {
		t.Errorf("analyze config = %q %+v", cfg.Command, cfg.Audio)
	}
	if cfg.Audio.WAVRealtime || cfg.Audio.WAVLoop {
		t.Error("analyze must read the file once, as fast as possible")
	}
	if cfg.DSP.Window != "hamming" {
		t.Errorf("persistent flag not applied to analyze: window %q", cfg.DSP.Window)
	}
}

func TestParseArgsWAVSource(t *testing.T) {
	opts, err := ParseArgs([]string{"--wav", "speech.wav"})
	if err != nil {
		t.Fatal(err)
	}
	a := opts.Config.Audio
	if a.Source != config.SourceWAV || a.WAVPath != "speech.wav" || !a.WAVRealtime {
		t.Errorf("audio = %+v, want a realtime WAV source", a)
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"inverted band", []string{"--low-cut", "3000", "--high-cut", "300"}, "cutoffs"},
		{"above nyquist", []string{"-s", "8000", "--high-cut", "4000"}, "Nyquist"},
		{"unknown window", []string{"--window", "triangle"}, "dsp.window"},
		{"bad buffer", []string{"-b", "1"}, "frames_per_buffer"},
		{"bad log level", []string{"--log-level", "loud"}, "log_level"},
		{"bad udp target", []string{"--udp", "localhost"}, "udp_target_address"},
		{"pick with wav", []string{"--pick", "--wav", "x.wav"}, "--pick"},
		{"analyze without file", []string{"analyze"}, "arg"},
		{"unknown flag", []string{"--record"}, "unknown flag"},
		{"missing config", []string{"--config", "/nonexistent/voicedsp.yaml"}, "failed to read config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(tt.args)
			if err == nil {
				t.Fatalf("ParseArgs(%v) succeeded, want error containing %q", tt.args, tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ParseArgs(%v) error = %v, want it to contain %q", tt.args, err, tt.want)
			}
		})
	}
}

func TestParseArgsVersion(t *testing.T) {
	opts, err := ParseArgs([]string{"--version"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Run {
		t.Error("--version should not run the analyzer")
	}
}
