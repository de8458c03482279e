// Package logger provides the levelled logger used by the tiled compressor.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

const RFC3339UsecTz0 = "2006-01-02T15:04:05.000000Z07:00"

var _ Logger = &nopLogger{}

// Logger is the logging interface accepted by the compressor and
// decompressor.
type Logger interface {
	Printf(format string, v ...any)
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
	// WithPrefix returns a Logger with the same configuration whose lines
	// all carry prefix.
	WithPrefix(prefix string) Logger
}

const (
	LevelError = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func LevelPrefix(level int) string {
	return [...]string{"ERROR: ", "WARN:  ", "INFO:  ", "DEBUG: "}[level]
}

var StderrLogger = NewStandardLogger(os.Stderr)

// NopLogger discards everything.
var NopLogger Logger = &nopLogger{}

type nopLogger struct{}

func (n *nopLogger) Printf(format string, v ...any) {}
func (n *nopLogger) Debugf(format string, v ...any) {}
func (n *nopLogger) Infof(format string, v ...any)  {}
func (n *nopLogger) Warnf(format string, v ...any)  {}
func (n *nopLogger) Errorf(format string, v ...any) {}

func (n *nopLogger) WithPrefix(prefix string) Logger {
	return n
}

// standardLogger writes through a log.Logger.
type standardLogger struct {
	logger    *log.Logger
	verbosity int
	prefix    string
	w         io.Writer
}

// write in UTC with constant width and microsecond resolution.
type formatLog struct {
	w io.Writer
}

func (fl formatLog) Write(b []byte) (int, error) {
	return fmt.Fprintf(fl.w, "%v %v", time.Now().UTC().Format(RFC3339UsecTz0), string(b))
}

func newStandardLogger(w io.Writer, verbosity int, prefix string) *standardLogger {
	l := log.New(formatLog{w: w}, prefix, 0)
	return &standardLogger{
		logger:    l,
		verbosity: verbosity,
		prefix:    prefix,
		w:         w,
	}
}

// NewStandardLogger logs at info level and above.
func NewStandardLogger(w io.Writer) Logger {
	return newStandardLogger(w, LevelInfo, "")
}

// NewVerboseLogger also logs debug lines.
func NewVerboseLogger(w io.Writer) Logger {
	return newStandardLogger(w, LevelDebug, "")
}

func (s *standardLogger) printf(level int, format string, v ...any) {
	if level > s.verbosity {
		return
	}
	s.logger.Printf(LevelPrefix(level)+format, v...)
}

func (s *standardLogger) Printf(format string, v ...any) {
	s.printf(LevelInfo, format, v...)
}

func (s *standardLogger) Debugf(format string, v ...any) {
	s.printf(LevelDebug, format, v...)
}

func (s *standardLogger) Infof(format string, v ...any) {
	s.printf(LevelInfo, format, v...)
}

func (s *standardLogger) Warnf(format string, v ...any) {
	s.printf(LevelWarn, format, v...)
}

func (s *standardLogger) Errorf(format string, v ...any) {
	s.printf(LevelError, format, v...)
}

func (s *standardLogger) WithPrefix(prefix string) Logger {
	return newStandardLogger(s.w, s.verbosity, s.prefix+prefix)
}

// Logfer is anything with a Logf method, such as *testing.T.
type Logfer interface {
	Logf(format string, v ...any)
}

// LogfLogger adapts a Logfer to Logger for tests.
type LogfLogger struct {
	wrapped Logfer
	prefix  string
}

func NewLogfLogger(l Logfer) *LogfLogger {
	return &LogfLogger{wrapped: l}
}

func (ll *LogfLogger) Printf(format string, v ...any) {
	ll.wrapped.Logf(ll.prefix+format, v...)
}

func (ll *LogfLogger) Debugf(format string, v ...any) { ll.Printf(LevelPrefix(LevelDebug)+format, v...) }
func (ll *LogfLogger) Infof(format string, v ...any)  { ll.Printf(LevelPrefix(LevelInfo)+format, v...) }
func (ll *LogfLogger) Warnf(format string, v ...any)  { ll.Printf(LevelPrefix(LevelWarn)+format, v...) }
func (ll *LogfLogger) Errorf(format string, v ...any) { ll.Printf(LevelPrefix(LevelError)+format, v...) }

func (ll *LogfLogger) WithPrefix(prefix string) Logger {
	return &LogfLogger{wrapped: ll.wrapped, prefix: ll.prefix + prefix}
}

// BufferLogger keeps messages in memory so tests can inspect them.
type BufferLogger struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func NewBufferLogger() *BufferLogger {
	return &BufferLogger{}
}

func (b *BufferLogger) Printf(format string, v ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fmt.Fprintf(&b.buf, format, v...)
	b.buf.WriteByte('\n')
}

func (b *BufferLogger) Debugf(format string, v ...any) {}
func (b *BufferLogger) Infof(format string, v ...any)  { b.Printf(LevelPrefix(LevelInfo)+format, v...) }
func (b *BufferLogger) Warnf(format string, v ...any)  { b.Printf(LevelPrefix(LevelWarn)+format, v...) }
func (b *BufferLogger) Errorf(format string, v ...any) { b.Printf(LevelPrefix(LevelError)+format, v...) }

// WithPrefix returns b unchanged.
func (b *BufferLogger) WithPrefix(prefix string) Logger {
	return b
}

// String returns everything logged so far.
func (b *BufferLogger) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
