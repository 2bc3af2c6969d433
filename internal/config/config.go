// SPDX-License-Identifier: MIT
package config

import "time"

// Boundaries and defaults for the analyzer configuration.
const (
	DefaultLogLevel        = "info"
	DefaultSource          = SourceDevice
	DefaultDeviceID        = MinDeviceID // System default input device.
	DefaultSampleRate      = 44100       // CD-quality audio.
	DefaultFramesPerBuffer = 1024        // ~23ms at 44.1kHz, one FFT per block.
	DefaultBlockFit        = "pad"
	DefaultLowCutoffHz     = 300  // Lower edge of the telephone voice band.
	DefaultHighCutoffHz    = 3400 // Upper edge of the telephone voice band.
	DefaultWindow          = "hann"
	DefaultMailboxDepth    = 1

	DefaultWebSocketAddress     = ":8080"
	DefaultWebSocketMinInterval = 33 * time.Millisecond // ~30Hz.
	DefaultUDPTargetAddress     = "127.0.0.1:9090"
	DefaultUDPSendInterval      = 33 * time.Millisecond

	// Hardware and processing limits.
	MinDeviceID     = -1     // -1 represents the system default device.
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz).
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz).
	MaxBufferFrames = 8192   // Maximum frames per buffer.
)

// Capture sources.
const (
	SourceDevice = "device" // PortAudio input device.
	SourceWAV    = "wav"    // WAV file, optionally paced and looped.
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"`         // Logging level ("debug", "info", "warn", "error").
	Command   string          `yaml:"command,omitempty"` // One-off command instead of running the analyzer.
	Audio     AudioConfig     `yaml:"audio"`             // Capture settings.
	DSP       DSPConfig       `yaml:"dsp"`               // Filter and spectrum settings.
	Delivery  DeliveryConfig  `yaml:"delivery"`          // Producer to consumer hand-off.
	Transport TransportConfig `yaml:"transport"`         // Network consumers.
}

// AudioConfig holds settings related to audio capture.
type AudioConfig struct {
	Source          string  `yaml:"source"`            // "device" or "wav".
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	WAVPath         string  `yaml:"wav_path"`          // WAV file for the wav source.
	WAVLoop         bool    `yaml:"wav_loop"`          // Rewind at end of file instead of stopping.
	WAVRealtime     bool    `yaml:"wav_realtime"`      // Pace WAV blocks at the capture rate.
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Samples per captured block.
	LowLatency      bool    `yaml:"low_latency"`       // Request the device's low input latency.
	BlockFit        string  `yaml:"block_fit"`         // "pad" or "truncate" onto a power of two.
}

// DSPConfig holds the band-pass and window settings.
type DSPConfig struct {
	LowCutoffHz  float64 `yaml:"low_cutoff_hz"`  // High-pass corner.
	HighCutoffHz float64 `yaml:"high_cutoff_hz"` // Low-pass corner.
	Window       string  `yaml:"window"`         // Window function name.
	BlockReset   bool    `yaml:"block_reset"`    // Reset filter state every block.
}

// DeliveryConfig controls the hand-off from the capture worker.
type DeliveryConfig struct {
	MailboxDepth int `yaml:"mailbox_depth"` // Pending frames kept for a slow consumer.
}

// TransportConfig holds settings for network consumers.
type TransportConfig struct {
	WebSocketEnabled     bool          `yaml:"websocket_enabled"`      // Serve spectra on /spectrum.
	WebSocketAddress     string        `yaml:"websocket_address"`      // Listen address, e.g. ":8080".
	WebSocketMinInterval time.Duration `yaml:"websocket_min_interval"` // Minimum time between broadcasts.
	UDPEnabled           bool          `yaml:"udp_enabled"`            // Publish spectra over UDP.
	UDPTargetAddress     string        `yaml:"udp_target_address"`     // e.g. "127.0.0.1:9090".
	UDPSendInterval      time.Duration `yaml:"udp_send_interval"`      // Interval between packets.
	LogFrames            bool          `yaml:"log_frames"`             // Debug-log every frame's peak.
}

// NewConfig returns a Config holding the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			Source:          DefaultSource,
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			BlockFit:        DefaultBlockFit,
		},
		DSP: DSPConfig{
			LowCutoffHz:  DefaultLowCutoffHz,
			HighCutoffHz: DefaultHighCutoffHz,
			Window:       DefaultWindow,
		},
		Delivery: DeliveryConfig{
			MailboxDepth: DefaultMailboxDepth,
		},
		Transport: TransportConfig{
			WebSocketAddress:     DefaultWebSocketAddress,
			WebSocketMinInterval: DefaultWebSocketMinInterval,
			UDPTargetAddress:     DefaultUDPTargetAddress,
			UDPSendInterval:      DefaultUDPSendInterval,
		},
	}
}
