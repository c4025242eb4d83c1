// Replay tool for checking a running receipts server against known scores.
//
// Usage:
//
//	go run ./cmd/replay --file cases.yaml --url http://localhost:2000
//
// This tool:
//  1. Reads {name, points, receipt} cases from JSON or YAML (built-in examples without --file)
//  2. Posts each receipt to /receipts/process
//  3. Fetches /receipts/{id}/points and compares it with the expected points
//  4. Reports mismatches and latency
//
// Exit codes: 0 all cases matched, 1 at least one case failed, 2 command error.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const (
	exitMismatch     = 1
	exitCommandError = 2
)

// exitError carries the process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type options struct {
	file    string
	baseURL string
	workers int
	repeat  int
	verbose bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		code := exitCommandError
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			code = exitErr.code
		}
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(code)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay receipts against a running server and compare scores",
		Long: `Replay posts every case to /receipts/process, reads the points back from
/receipts/{id}/points and compares them with the expected value.

Examples:
  replay
  replay --file cases.yaml --workers 8 --repeat 100
  replay --url http://receipts:2000 --verbose`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "JSON or YAML case file (default: built-in examples)")
	cmd.Flags().StringVar(&opts.baseURL, "url", "http://localhost:2000", "receipts server base URL")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 4, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.repeat, "repeat", 1, "replay every case this many times")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "print each case result")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	out := cmd.OutOrStdout()

	cases := builtinCases
	if opts.file != "" {
		loaded, err := readCases(opts.file)
		if err != nil {
			return &exitError{code: exitCommandError, err: fmt.Errorf("failed to read cases: %w", err)}
		}
		cases = loaded
	}

	fmt.Fprintln(out, "+---------------------------------------------------------------+")
	fmt.Fprintln(out, "|                     RECEIPTS REPLAY                           |")
	fmt.Fprintln(out, "+---------------------------------------------------------------+")
	fmt.Fprintf(out, "\nServer:   %s\n", opts.baseURL)
	fmt.Fprintf(out, "Cases:    %d x %d\n", len(cases), max(opts.repeat, 1))
	fmt.Fprintf(out, "Workers:  %d\n\n", opts.workers)

	if err := checkHealth(opts.baseURL); err != nil {
		return &exitError{
			code: exitCommandError,
			err:  fmt.Errorf("server not reachable at %s (start it with: go run ./cmd/receipts): %w", opts.baseURL, err),
		}
	}

	startTime := time.Now()
	r := &replayer{baseURL: opts.baseURL, workers: opts.workers, verbose: opts.verbose, out: out}
	metrics, failures := r.run(expand(cases, opts.repeat))
	printResults(out, metrics, failures, time.Since(startTime))

	if len(failures) > 0 {
		return &exitError{code: exitMismatch, err: fmt.Errorf("%d of %d cases failed", len(failures), metrics.TotalProcessed)}
	}
	return nil
}
