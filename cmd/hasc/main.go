// Command hasc compiles HAS source into 68000 assembly text.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rozensoftware/highamigaassembler/internal/compiler"
	"github.com/rozensoftware/highamigaassembler/internal/config"
	"github.com/rozensoftware/highamigaassembler/internal/diag"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := config.Default()

	cmd := &cobra.Command{
		Use:           "hasc [input]",
		Short:         "Compile HAS source into 68000 assembly",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Input = args[0]
			}
			if opts.Input == "" && opts.Generate == "" {
				return fmt.Errorf("an input path is required unless --generate is set")
			}
			return run(opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", opts.Output, "output assembly path")
	cmd.PersistentFlags().StringVar(&opts.Generate, "generate", opts.Generate, "execute this script and compile its stdout")
	cmd.PersistentFlags().BoolVar(&opts.NoValidate, "no-validate", opts.NoValidate, "skip the validator (debugging the back end)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", opts.Verbose, "trace each pipeline stage to standard error")

	return cmd
}

func run(opts config.Options) error {
	if opts.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	log.SetOutput(os.Stderr)

	result, err := compiler.Compile(opts)
	if err != nil {
		reportError(err)
		return err
	}

	for _, w := range result.Diags.Warnings() {
		fmt.Fprintln(os.Stderr, w.String())
	}

	if err := os.WriteFile(opts.Output, []byte(result.Assembly), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "writing output: %v\n", err)
		return err
	}

	fmt.Printf("wrote assembly to %s\n", opts.Output)
	return nil
}

func reportError(err error) {
	if ce, ok := err.(*diag.CompileError); ok {
		for _, d := range ce.Diagnostics {
			fmt.Fprintln(os.Stderr, d.String())
		}
		return
	}
	fmt.Fprintln(os.Stderr, err.Error())
}
