package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/beatify/internal/adapter/audio/native"
	"github.com/tejashwikalptaru/beatify/internal/app"
	"github.com/tejashwikalptaru/beatify/internal/config"
	"github.com/tejashwikalptaru/beatify/internal/logger"
)

// flags holds the command-line overrides. Only flags the user set are applied.
type flags struct {
	configPath string
	mode       string
	fps        int
	mockAudio  bool
	logLevel   string
	volume     float64
}

// runFunc starts the application; swapped in tests.
type runFunc func(opts app.Options) error

func newRootCmd(out io.Writer, run runFunc) *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:           "beatify",
		Short:         "Audio-reactive visualizer for files and the microphone",
		Version:       app.GetVersionInfo().Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}

			overrides := f.overrides(cmd)
			overrides(cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}

			watchPath := f.configPath
			if watchPath == "" {
				if _, err := os.Stat(config.DefaultPath); err == nil {
					watchPath = config.DefaultPath
				}
			}

			return run(app.Options{
				Config:     cfg,
				ConfigPath: watchPath,
				Overrides:  overrides,
			})
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.Flags().StringVarP(&f.configPath, "config", "c", "",
		"Path to the YAML config file (default ./"+config.DefaultPath+" when present)")
	rootCmd.Flags().StringVarP(&f.mode, "mode", "m", "",
		"Initial visual mode: bars, wave or radial")
	rootCmd.Flags().IntVar(&f.fps, "fps", 0,
		"Frame rate of the visualizer")
	rootCmd.Flags().BoolVar(&f.mockAudio, "mock-audio", false,
		"Use a synthetic signal instead of audio hardware")
	rootCmd.Flags().StringVarP(&f.logLevel, "log-level", "l", "",
		"Log level: debug, info, warn or error")
	rootCmd.Flags().Float64Var(&f.volume, "volume", 0,
		"Initial volume between 0.0 and 1.0")

	rootCmd.AddCommand(newDevicesCmd(out), newVersionCmd(out))
	return rootCmd
}

// overrides returns a function applying the flags that were set on cmd.
func (f flags) overrides(cmd *cobra.Command) func(*config.Config) {
	changed := cmd.Flags().Changed
	return func(cfg *config.Config) {
		if changed("mode") {
			cfg.Render.Mode = f.mode
		}
		if changed("fps") {
			cfg.Render.FPS = f.fps
		}
		if changed("mock-audio") {
			cfg.Audio.Mock = f.mockAudio
		}
		if changed("log-level") {
			cfg.Log.Level = f.logLevel
		}
		if changed("volume") {
			cfg.Audio.Volume = f.volume
		}
	}
}

func newDevicesCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.NewLogger(logger.DefaultConfig())
			devices, err := native.NewPlatform(native.DefaultOptions(), log).Devices()
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(out, "\nAvailable Input Devices\n\n")
			for _, d := range devices {
				_, _ = fmt.Fprintf(out, "[%d] %s\n", d.Index, d.Name)
				_, _ = fmt.Fprintf(out, "    Input channels: %d, Sample rate: %.0f Hz\n", d.InputChannels, d.DefaultSampleRate)
				_, _ = fmt.Fprintf(out, "    Latency: %v - %v\n\n", d.LowLatency, d.HighLatency)
			}
			if len(devices) == 0 {
				_, _ = fmt.Fprintln(out, "No input devices found")
			}
			return nil
		},
	}
}

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(out, app.GetVersionInfo().FullString())
		},
	}
}
