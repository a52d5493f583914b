package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/roach88/conduit/internal/runlog"
	"github.com/roach88/conduit/internal/sim"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Run failure (delivery invariant violated, payload mismatches)
	ExitCommandError = 2 // Command error (bad flags, unreadable scenario, database not found, etc.)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
// Text rendering of known payloads is handled by the render helpers;
// anything else falls back to fmt.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	switch v := data.(type) {
	case *sim.Report:
		renderReportText(f.Writer, v)
	case []runlog.RunSummary:
		renderHistoryText(f.Writer, v)
	default:
		fmt.Fprintln(f.Writer, data)
	}
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return nil
}

// renderReportText writes the human-readable form of a run report.
func renderReportText(w io.Writer, r *sim.Report) {
	fmt.Fprintf(w, "Run %s (%s)\n", r.Name, r.RunID)
	fmt.Fprintf(w, "  Producers:     %d x %d items\n", r.Producers, r.ItemsPerProducer)
	fmt.Fprintf(w, "  Consumers:     %d\n", r.Consumers)
	fmt.Fprintf(w, "  Capacity:      %d\n", r.Capacity)
	fmt.Fprintf(w, "  Produced:      %d\n", r.Produced)
	fmt.Fprintf(w, "  Consumed:      %d\n", r.Consumed)
	fmt.Fprintf(w, "  End-of-stream: %d\n", r.EndOfStream)
	fmt.Fprintf(w, "  Mismatches:    %d\n", r.Mismatches)
	fmt.Fprintf(w, "  Duration:      %s\n", r.Duration)
}

// renderHistoryText writes the human-readable run log listing,
// newest first, one line per run.
func renderHistoryText(w io.Writer, runs []runlog.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s  %-12s %s  %dx%d -> %d  cap=%d consumed=%d eos=%d mismatches=%d\n",
			run.StartedAt.UTC().Format(time.RFC3339),
			run.Name,
			run.RunID,
			run.Producers,
			run.ItemsPerProducer,
			run.Consumers,
			run.Capacity,
			run.Consumed,
			run.EndOfStream,
			run.Mismatches,
		)
	}
}
