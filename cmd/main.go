// Package main is the production entry point for Beatify.
//
// Beatify renders live audio as bars, a waveform or a radial spectrum:
// - Audio comes from a loaded file, a trial track or the microphone
// - Dependency injection for testability
// - MVP pattern for UI decoupling
// - Event-driven communication between services and the UI
//
// Build:
//
//	go build -o build/beatify ./cmd
//
// Run:
//
//	./build/beatify --mode radial
package main

import (
	"fmt"
	"os"

	"github.com/tejashwikalptaru/beatify/internal/app"
)

func main() {
	root := newRootCmd(os.Stdout, runApplication)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runApplication creates the application and blocks until the window closes.
func runApplication(opts app.Options) error {
	application, err := app.NewApplication(opts)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Ensure a graceful shutdown
	defer func() {
		if err := application.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
		}
	}()

	return application.Run()
}
