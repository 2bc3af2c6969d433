// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"

	"voicedsp/internal/config"
	"voicedsp/pkg/build"

	"github.com/spf13/cobra"
)

// Commands selected by ParseArgs, stored in config.Config.Command.
const (
	CommandList    = "list"
	CommandAnalyze = "analyze"
)

// Options is the parsed command line. Config already has the file, the
// environment and the flags applied and has been validated.
type Options struct {
	Config   *config.Config
	Headless bool // Run without the terminal UI until a signal arrives.
	Pick     bool // Choose the input device interactively first.
	Run      bool // False after --help or --version.
}

// flagValues holds the raw flag values; only flags the user set are
// applied over the loaded configuration.
type flagValues struct {
	configPath      string
	deviceID        int
	sampleRate      float64
	framesPerBuffer int
	lowCut          float64
	highCut         float64
	window          string
	logLevel        string
	udp             string
	ws              string
	wav             string
}

// ParseArgs parses args (without the program name) into Options.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}
	var flags flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(flags.configPath)
			if err != nil {
				return err
			}
			options.Config = cfg
			return applyFlags(cmd, cfg, &flags)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return finish(options, "")
		},
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   CommandList,
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return finish(options, CommandList)
		},
	}
	rootCmd.AddCommand(listCmd)

	// Analyze command
	analyzeCmd := &cobra.Command{
		Use:   CommandAnalyze + " <file.wav>",
		Short: "Print the dominant frequency of every block of a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := options.Config
			cfg.Audio.Source = config.SourceWAV
			cfg.Audio.WAVPath = args[0]
			cfg.Audio.WAVLoop = false
			cfg.Audio.WAVRealtime = false
			return finish(options, CommandAnalyze)
		},
	}
	rootCmd.AddCommand(analyzeCmd)

	pf := rootCmd.PersistentFlags()

	// Configuration
	pf.StringVar(&flags.configPath, "config", "",
		"YAML configuration file (default: ./config.yaml if present)")
	pf.StringVar(&flags.logLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn or error")

	// Audio Device Configuration
	pf.IntVarP(&flags.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (one spectrum per buffer)")

	// DSP Configuration
	pf.Float64Var(&flags.lowCut, "low-cut", config.DefaultLowCutoffHz,
		"Band-pass lower cutoff in Hz")
	pf.Float64Var(&flags.highCut, "high-cut", config.DefaultHighCutoffHz,
		"Band-pass upper cutoff in Hz")
	pf.StringVarP(&flags.window, "window", "w", config.DefaultWindow,
		"Analysis window: hann, hamming, blackman, blackmannuttall, bartletthann, nuttall, lanczos")

	// Consumers
	pf.StringVar(&flags.udp, "udp", "",
		"Publish spectra over UDP to host:port")
	pf.StringVar(&flags.ws, "ws", "",
		"Serve spectra over WebSocket on this address, e.g. :8080")

	// Live analyzer only
	rootCmd.Flags().BoolVar(&options.Headless, "headless", false,
		"Run without the terminal UI until interrupted")
	rootCmd.Flags().BoolVar(&options.Pick, "pick", false,
		"Choose the input device and sample rate interactively")
	rootCmd.Flags().StringVar(&flags.wav, "wav", "",
		"Replay a WAV file in real time instead of capturing a device")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}

// applyFlags copies every flag the user set into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config, flags *flagValues) error {
	changed := cmd.Flags().Changed

	if changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if changed("device") {
		cfg.Audio.InputDevice = flags.deviceID
		cfg.Audio.Source = config.SourceDevice
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = flags.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = flags.framesPerBuffer
	}
	if changed("low-cut") {
		cfg.DSP.LowCutoffHz = flags.lowCut
	}
	if changed("high-cut") {
		cfg.DSP.HighCutoffHz = flags.highCut
	}
	if changed("window") {
		cfg.DSP.Window = flags.window
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = flags.udp != ""
		if flags.udp != "" {
			cfg.Transport.UDPTargetAddress = flags.udp
		}
	}
	if changed("ws") {
		cfg.Transport.WebSocketEnabled = flags.ws != ""
		if flags.ws != "" {
			cfg.Transport.WebSocketAddress = flags.ws
		}
	}
	if changed("wav") {
		cfg.Audio.Source = config.SourceWAV
		cfg.Audio.WAVPath = flags.wav
		cfg.Audio.WAVRealtime = true
	}
	return nil
}

// finish records the command and validates the final configuration.
func finish(options *Options, command string) error {
	cfg := options.Config
	cfg.Command = command
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if options.Pick && cfg.Audio.Source != config.SourceDevice {
		return fmt.Errorf("--pick selects a capture device and cannot be combined with a WAV source")
	}
	options.Run = true
	return nil
}

// Execute parses os.Args.
func Execute() (*Options, error) {
	return ParseArgs(os.Args[1:])
}
