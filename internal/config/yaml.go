// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"voicedsp/internal/dsp"
	applog "voicedsp/internal/log"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvFile is the dotenv file loaded before environment overrides are
// applied. A missing file is not an error.
var EnvFile = ".env"

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it loads EnvFile, applies environment
// variable overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"voicedsp.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := loadEnvFile(EnvFile); err != nil {
		return nil, err
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadEnvFile(name string) error {
	if name == "" {
		return nil
	}
	// godotenv never overwrites variables already set in the process.
	if err := godotenv.Load(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", name, err)
	}
	applog.Debugf("Config: Loaded environment from %s", name)
	return nil
}

// Validate checks every setting the analyzer depends on. DSP parameters
// are checked here so degenerate filters are reported before any capture
// starts.
func (c *Config) Validate() error {
	if _, ok := applogLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level '%s' is not one of debug, info, warn, error", c.LogLevel)
	}

	a := c.Audio
	switch a.Source {
	case SourceDevice:
		if a.InputDevice < MinDeviceID {
			return fmt.Errorf("audio.input_device must be >= %d, got %d", MinDeviceID, a.InputDevice)
		}
	case SourceWAV:
		if a.WAVPath == "" {
			return fmt.Errorf("audio.wav_path must be set when audio.source is '%s'", SourceWAV)
		}
	default:
		return fmt.Errorf("audio.source '%s' must be '%s' or '%s'", a.Source, SourceDevice, SourceWAV)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer < 2 || a.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer %d outside [2, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}
	if _, err := dsp.ParseBlockFit(a.BlockFit); err != nil {
		return fmt.Errorf("audio.block_fit: %w", err)
	}

	d := c.DSP
	if d.LowCutoffHz <= 0 || d.LowCutoffHz >= d.HighCutoffHz {
		return fmt.Errorf("dsp cutoffs must satisfy 0 < low (%.1f) < high (%.1f)", d.LowCutoffHz, d.HighCutoffHz)
	}
	if d.HighCutoffHz >= a.SampleRate/2 {
		return fmt.Errorf("dsp.high_cutoff_hz %.1f must be below Nyquist (%.1f)", d.HighCutoffHz, a.SampleRate/2)
	}
	if _, err := dsp.ParseWindowFunc(d.Window); err != nil {
		return fmt.Errorf("dsp.window: %w", err)
	}
	if _, err := dsp.NewBandPass(float32(d.LowCutoffHz), float32(d.HighCutoffHz), float32(a.SampleRate), dsp.BandPassOptions{}); err != nil {
		return fmt.Errorf("dsp: %w", err)
	}

	if c.Delivery.MailboxDepth < 1 {
		return fmt.Errorf("delivery.mailbox_depth must be >= 1, got %d", c.Delivery.MailboxDepth)
	}

	t := c.Transport
	if t.WebSocketEnabled {
		if t.WebSocketAddress == "" {
			return fmt.Errorf("transport.websocket_address must be set when the WebSocket is enabled")
		}
		if t.WebSocketMinInterval < 0 {
			return fmt.Errorf("transport.websocket_min_interval must not be negative")
		}
	}
	if t.UDPEnabled {
		if t.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if !strings.Contains(t.UDPTargetAddress, ":") {
			return fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", t.UDPTargetAddress)
		}
		if t.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}

	return nil
}

func applogLevel(s string) (applog.LogLevel, bool) {
	level, ok := applog.ParseLevel(s)
	if ok && level == applog.LevelFatal {
		return level, false
	}
	return level, ok
}

// Level returns the parsed log level.
func (c *Config) Level() applog.LogLevel {
	level, _ := applogLevel(c.LogLevel)
	return level
}

// applyEnvOverrides applies ENV_* variables on top of the file settings.
// Malformed values are errors rather than silently ignored.
func (c *Config) applyEnvOverrides() error {
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Infof("Config: Overriding log_level from env: %s", val)
	}

	// ENV_{...} audio and DSP overrides.
	if val, ok := os.LookupEnv("ENV_SAMPLE_RATE"); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("ENV_SAMPLE_RATE: %w", err)
		}
		c.Audio.SampleRate = f
		applog.Infof("Config: Overriding audio.sample_rate from env: %.0f", f)
	}
	if val, ok := os.LookupEnv("ENV_INPUT_DEVICE"); ok {
		id, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("ENV_INPUT_DEVICE: %w", err)
		}
		c.Audio.InputDevice = id
		applog.Infof("Config: Overriding audio.input_device from env: %d", id)
	}
	if val, ok := os.LookupEnv("ENV_LOW_CUTOFF_HZ"); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("ENV_LOW_CUTOFF_HZ: %w", err)
		}
		c.DSP.LowCutoffHz = f
		applog.Infof("Config: Overriding dsp.low_cutoff_hz from env: %.1f", f)
	}
	if val, ok := os.LookupEnv("ENV_HIGH_CUTOFF_HZ"); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("ENV_HIGH_CUTOFF_HZ: %w", err)
		}
		c.DSP.HighCutoffHz = f
		applog.Infof("Config: Overriding dsp.high_cutoff_hz from env: %.1f", f)
	}

	// ENV_UDP_{...} and ENV_WS_{...} transport overrides.
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("ENV_UDP_ENABLED: %w", err)
		}
		c.Transport.UDPEnabled = b
		applog.Infof("Config: Overriding transport.udp_enabled from env: %v", b)
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Infof("Config: Overriding transport.udp_target_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		dur, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("ENV_UDP_SEND_INTERVAL: %w", err)
		}
		c.Transport.UDPSendInterval = dur
		applog.Infof("Config: Overriding transport.udp_send_interval from env: %s", dur)
	}
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("ENV_WS_ENABLED: %w", err)
		}
		c.Transport.WebSocketEnabled = b
		applog.Infof("Config: Overriding transport.websocket_enabled from env: %v", b)
	}
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		applog.Infof("Config: Overriding transport.websocket_address from env: %s", val)
	}

	return nil
}
