package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/stewardhq/steward/internal/errors"
)

// Log rotation settings for the engine log file.
const (
	logMaxSizeMB  = 10
	logMaxBackups = 3
	logMaxAgeDays = 30
)

// Init creates the engine logger.
//
// Output format follows the terminal: a TTY without NO_COLOR gets the
// console writer, everything else gets JSON on stderr. When file is
// non-empty the logger additionally writes JSON to a rotating file behind
// the sensitive data filter.
//
// The returned closer shuts the file writer; it is a no-op for console-only
// logging.
func Init(level, file string) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nil, errors.Wrapf(err, "invalid log level: %s", level)
	}

	writer := consoleOutput()
	closer := io.Closer(nopCloser{})

	if file != "" {
		fileWriter, err := newFileWriter(file)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		writer = zerolog.MultiLevelWriter(writer, NewFilteringWriter(fileWriter))
		closer = fileWriter
	}

	logger := zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
	log.Logger = logger
	return logger, closer, nil
}

// consoleOutput picks the stderr format based on terminal capabilities.
func consoleOutput() io.Writer {
	if term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		}
	}
	return os.Stderr
}

// newFileWriter creates the rotating log file writer, creating the parent
// directory if needed.
func newFileWriter(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Wrap(err, "create log directory")
		}
	}

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
		Compress:   true,
	}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
