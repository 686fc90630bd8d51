// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/helper/gc"
)

// Logger defines the interface for logging operations.
//
// Secure channels (handed one through their session context) and the CLI
// log through this interface, so a caller can switch between human-readable
// output and structured JSON lines without touching the core packages.
type Logger interface {
	// Printf formats and prints a log message.
	Printf(format string, v ...any)
	// Println prints a log message with a newline.
	Println(v ...any)
	// SetOutput sets the output destination for the logger.
	SetOutput(w io.Writer)
}

// CLILogger implements Logger using the standard log package.
// It's designed for command-line interface output with human-readable formatting.
type CLILogger struct{ logger *log.Logger }

// NewCLILogger creates a new CLI logger with timestamps disabled.
// Output goes to stderr so it never mixes with command output on stdout.
func NewCLILogger() *CLILogger {
	l := log.New(os.Stderr, "", 0)
	return &CLILogger{logger: l}
}

// Printf formats and prints a log message using fmt.Printf semantics.
func (c *CLILogger) Printf(format string, v ...any) { c.logger.Printf(format, v...) }

// Println prints a log message with a newline.
func (c *CLILogger) Println(v ...any) { c.logger.Println(v...) }

// SetOutput sets the output destination for the CLI logger.
func (c *CLILogger) SetOutput(w io.Writer) { c.logger.SetOutput(w) }

// jsonOutput is the destination shared by a JSONLogger and every logger
// derived from it with [JSONLogger.WithComponent].
type jsonOutput struct {
	mu     sync.Mutex
	writer io.Writer
}

// jsonEntry is one line of structured output.
type jsonEntry struct {
	Level     string `json:"level"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
}

// JSONLogger implements Logger by writing one JSON object per line.
//
// Each line carries a "level" and a "message" field, plus a "component"
// field for loggers created with [JSONLogger.WithComponent]. Lines are
// assembled in a pooled buffer and written with a single Write call.
//
// JSONLogger is safe for concurrent use by multiple goroutines.
type JSONLogger struct {
	out       *jsonOutput
	component string
	silent    bool
}

// NewJSONLogger creates a structured logger writing to writer.
// A nil writer discards output. When silent is true nothing is written.
func NewJSONLogger(writer io.Writer, silent bool) *JSONLogger {
	if writer == nil {
		writer = io.Discard
	}
	return &JSONLogger{
		out:    &jsonOutput{writer: writer},
		silent: silent,
	}
}

// WithComponent returns a logger that tags each line with component.
// The returned logger shares the destination of j, including later
// [JSONLogger.SetOutput] calls made on either of them.
func (j *JSONLogger) WithComponent(component string) *JSONLogger {
	return &JSONLogger{
		out:       j.out,
		component: component,
		silent:    j.silent,
	}
}

// Printf formats and logs a structured message in JSON format.
// Output is suppressed if silent mode is enabled.
func (j *JSONLogger) Printf(format string, v ...any) {
	if j.silent {
		return
	}
	j.write(fmt.Sprintf(format, v...))
}

// Println logs a structured message in JSON format, spacing operands the
// way [fmt.Sprintln] does. Output is suppressed if silent mode is enabled.
func (j *JSONLogger) Println(v ...any) {
	if j.silent {
		return
	}
	j.write(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (j *JSONLogger) write(msg string) {
	buf := gc.Default.Get()
	defer func() {
		buf.Reset()
		gc.Default.Put(buf)
	}()

	// Encode appends the trailing newline.
	if err := json.NewEncoder(buf).Encode(jsonEntry{
		Level:     "info",
		Component: j.component,
		Message:   msg,
	}); err != nil {
		return
	}

	j.out.mu.Lock()
	_, _ = j.out.writer.Write(buf.Bytes())
	j.out.mu.Unlock()
}

// SetOutput sets the output destination for the JSON logger.
// A nil writer discards output.
//
// SetOutput is safe for concurrent use by multiple goroutines.
func (j *JSONLogger) SetOutput(w io.Writer) {
	j.out.mu.Lock()
	defer j.out.mu.Unlock()

	if w == nil {
		j.out.writer = io.Discard
	} else {
		j.out.writer = w
	}
}

// Discard is a Logger that drops every message.
var Discard Logger = NewJSONLogger(io.Discard, true)
