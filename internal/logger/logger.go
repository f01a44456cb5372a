package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a console logger on stdout
func New(verbose bool) zerolog.Logger {
	return NewConsole(os.Stdout, verbose)
}

// NewConsole creates a human-readable logger on w
func NewConsole(w io.Writer, verbose bool) zerolog.Logger {
	return NewWriter(zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime, NoColor: w != os.Stdout}, verbose)
}

// NewWriter creates a new logger that writes to the provided writer
func NewWriter(w io.Writer, verbose bool) zerolog.Logger {
	return zerolog.New(w).Level(level(verbose)).With().Timestamp().Logger()
}

// NewFile creates a JSON logger appending to path. The caller closes the returned file.
func NewFile(path string, verbose bool) (zerolog.Logger, *os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return NewWriter(file, verbose), file, nil
}

func level(verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
