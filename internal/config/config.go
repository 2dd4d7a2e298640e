// Package config holds the resolved compile-time options parsed from CLI
// flags, kept separate from cmd/hasc so internal/compiler can be
// driven directly from tests without going through cobra.
package config

import "time"

// DefaultGenerateTimeout bounds a `--generate` script invocation.
const DefaultGenerateTimeout = 30 * time.Second

// Options is the fully-resolved set of compile options for one invocation.
type Options struct {
	// Input is the source file path; it is not read when Generate is set,
	// since the source then comes from the script's stdout.
	Input string
	// Output is the destination assembly path (default "out.s").
	Output string
	// NoValidate skips the validator pass, still emitting code.
	NoValidate bool
	// Generate is a script path to execute before parsing; its stdout
	// becomes the source text. Empty means read Input directly.
	Generate string
	// GenerateTimeout bounds the `--generate` script's execution.
	GenerateTimeout time.Duration
	// Verbose enables pipeline-stage tracing via logrus.
	Verbose bool
}

// Default returns the documented flag defaults.
func Default() Options {
	return Options{
		Output:          "out.s",
		GenerateTimeout: DefaultGenerateTimeout,
	}
}
