package shared

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// SetupLogger configures a console logger on stderr
func SetupLogger(level log.Level) *log.Logger {
	return newLogger(os.Stderr, level)
}

// SetupFileLogger logs to a file, for commands that own the terminal. The
// returned closer must be called on exit.
func SetupFileLogger(path string, level log.Level) (*log.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return newLogger(f, level), f, nil
}

// DiscardLogger drops everything
func DiscardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
}
