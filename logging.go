// logging.go - structured logging for the cryptengine package.
//
// Package-level configuration for structured logging, so FDTable
// inserts/removals, wait-loop errors and context creation can be observed
// without threading a logger through every call site. Engine spawn/exit
// and status-line dispatch errors are not logged.
//
// Usage:
//
//	cryptengine.SetStructuredLogger(cryptengine.NewDefaultLogger(cryptengine.LevelInfo))
//
// or, to use the pack's own zero-reflection structured-logging stack:
//
//	cryptengine.SetStructuredLogger(cryptengine.NewStumpyLogger(cryptengine.LevelInfo, os.Stderr))

package cryptengine

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

var globalLogger struct {
	sync.RWMutex
	logger Logger
}

// SetStructuredLogger sets the process-wide logger used by SDebug/SInfo/
// SWarn/SError and by the default FDTable/Context/wait-loop instances.
func SetStructuredLogger(logger Logger) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = logger
}

func getGlobalLogger() Logger {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	if globalLogger.logger != nil {
		return globalLogger.logger
	}
	return NewNoOpLogger()
}

// LogLevel is the severity of a log entry, ordered so a numeric comparison
// implements the usual "log this and everything more severe" filter.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// LogEntry is a structured log record. Category names the subsystem that
// emitted it ("fdtable", "waitloop", "spawn", "dispatch", "context").
type LogEntry struct {
	Level         LogLevel
	Category      string
	ContextSerial int64
	FD            int
	Fields        map[string]interface{}
	Message       string
	Err           error
	Timestamp     time.Time
}

// Logger is the structured logging interface implemented by every backend
// in this file, and by any adapter a caller wires in its place.
type Logger interface {
	Log(entry LogEntry)
	IsEnabled(level LogLevel) bool
}

// DefaultLogger writes pretty-printed entries to a terminal and JSON lines
// otherwise.
type DefaultLogger struct {
	level atomic.Int32
	mu    sync.Mutex
	Out   *os.File
}

func NewDefaultLogger(level LogLevel) *DefaultLogger {
	l := &DefaultLogger{Out: os.Stdout}
	l.level.Store(int32(level))
	return l
}

func NewFileLogger(level LogLevel, filename string) (*DefaultLogger, error) {
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := &DefaultLogger{Out: file}
	l.level.Store(int32(level))
	return l, nil
}

func (l *DefaultLogger) SetLevel(level LogLevel) { l.level.Store(int32(level)) }

func (l *DefaultLogger) IsEnabled(level LogLevel) bool {
	return level >= LogLevel(l.level.Load())
}

func (l *DefaultLogger) Log(entry LogEntry) {
	if !l.IsEnabled(entry.Level) {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if isTerminal(l.Out) {
		l.logPretty(entry)
	} else {
		l.logJSON(entry)
	}
}

func (l *DefaultLogger) logPretty(entry LogEntry) {
	colorReset := "\033[0m"
	colorError := "\033[31m"
	colorWarn := "\033[33m"
	colorInfo := "\033[36m"
	colorDebug := "\033[90m"
	colorDim := "\033[2m"

	var color string
	switch entry.Level {
	case LevelDebug:
		color = colorDebug
	case LevelInfo:
		color = colorInfo
	case LevelWarn:
		color = colorWarn
	case LevelError:
		color = colorError
	}

	fmt.Fprintf(l.Out, "%s%s%s %s [%-10s] %s%s",
		color, entry.Level.String(), colorReset,
		entry.Timestamp.Format("15:04:05.000"),
		entry.Category,
		entry.Message,
		colorReset,
	)

	if len(entry.Fields) > 0 || entry.ContextSerial != 0 || entry.FD != 0 {
		fmt.Fprint(l.Out, colorDim)
		if entry.ContextSerial != 0 {
			fmt.Fprintf(l.Out, " ctx=%d", entry.ContextSerial)
		}
		if entry.FD != 0 {
			fmt.Fprintf(l.Out, " fd=%d", entry.FD)
		}
		for k, v := range entry.Fields {
			fmt.Fprintf(l.Out, " %s=%v", k, v)
		}
		fmt.Fprint(l.Out, colorReset)
	}

	if entry.Err != nil {
		fmt.Fprintf(l.Out, " %s%v%s\n", colorError, entry.Err, colorReset)
	} else {
		fmt.Fprintln(l.Out)
	}
}

func (l *DefaultLogger) logJSON(entry LogEntry) {
	fmt.Fprintf(l.Out, "{\"timestamp\":\"%s\",\"level\":%q,\"category\":%q",
		entry.Timestamp.Format(time.RFC3339Nano),
		entry.Level.String(),
		entry.Category,
	)
	if entry.ContextSerial != 0 {
		fmt.Fprintf(l.Out, ",\"ctx\":%d", entry.ContextSerial)
	}
	if entry.FD != 0 {
		fmt.Fprintf(l.Out, ",\"fd\":%d", entry.FD)
	}
	for k, v := range entry.Fields {
		fmt.Fprintf(l.Out, ",%q:%v", k, v)
	}
	fmt.Fprintf(l.Out, ",\"message\":\"%s\"", escapeJSON(entry.Message))
	if entry.Err != nil {
		fmt.Fprintf(l.Out, ",\"error\":\"%s\"}\n", escapeJSON(entry.Err.Error()))
	} else {
		fmt.Fprintln(l.Out, "}")
	}
}

func escapeJSON(s string) string {
	b := make([]byte, 0, len(s)*6)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\', '"', '/', '\b', '\f', '\n', '\r', '\t':
			b = append(b, '\\', c)
		default:
			if c < ' ' {
				b = append(b, '\\', 'u', '0', '0', byte(c>>4)+'0', byte(c&0xF)+'0')
			} else {
				b = append(b, c)
			}
		}
	}
	return *(*string)(unsafe.Pointer(&b))
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil {
			return false
		}
		return (stat.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// NoOpLogger discards every entry; it is the default when no logger has
// been installed with SetStructuredLogger.
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (l *NoOpLogger) Log(entry LogEntry)         {}
func (l *NoOpLogger) IsEnabled(level LogLevel) bool { return false }

// WriterLogger writes plain-text entries to any io.Writer; convenient in
// tests, which install one over a bytes.Buffer and assert on its contents.
type WriterLogger struct {
	level atomic.Int32
	mu    sync.Mutex
	out   io.Writer
}

func NewWriterLogger(level LogLevel, out io.Writer) *WriterLogger {
	l := &WriterLogger{out: out}
	l.level.Store(int32(level))
	return l
}

func (l *WriterLogger) SetLevel(level LogLevel) { l.level.Store(int32(level)) }

func (l *WriterLogger) IsEnabled(level LogLevel) bool {
	return level >= LogLevel(l.level.Load())
}

func (l *WriterLogger) Log(entry LogEntry) {
	if !l.IsEnabled(entry.Level) {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] [%s] [%-10s] %s",
		entry.Level.String(),
		entry.Timestamp.Format("15:04:05.000"),
		entry.Category,
		entry.Message,
	)
	if entry.ContextSerial != 0 {
		fmt.Fprintf(l.out, " ctx=%d", entry.ContextSerial)
	}
	if entry.FD != 0 {
		fmt.Fprintf(l.out, " fd=%d", entry.FD)
	}
	for k, v := range entry.Fields {
		fmt.Fprintf(l.out, " %s=%v", k, v)
	}
	if entry.Err != nil {
		fmt.Fprintf(l.out, " err=%v\n", entry.Err)
	} else {
		fmt.Fprintln(l.out)
	}
}

// stumpyLogger adapts a *logiface.Logger[*stumpy.Event] - the pack's own
// zero-reflection JSON logging backend - to the Logger interface, so it can
// be installed via SetStructuredLogger alongside DefaultLogger/WriterLogger.
type stumpyLogger struct {
	level atomic.Int32
	inner *logiface.Logger[*stumpy.Event]
}

// NewStumpyLogger builds a Logger backed by stumpy, the pack's
// zero-reflection JSON logiface encoder.
func NewStumpyLogger(level LogLevel, out io.Writer) *stumpyLogger {
	l := &stumpyLogger{
		inner: stumpy.L.New(
			stumpy.L.WithWriter(logiface.WriterFunc[*stumpy.Event](func(e *stumpy.Event) error {
				_, err := out.Write(append(e.Bytes(), '\n'))
				return err
			})),
		),
	}
	l.level.Store(int32(level))
	return l
}

func (l *stumpyLogger) IsEnabled(level LogLevel) bool {
	return level >= LogLevel(l.level.Load())
}

func (l *stumpyLogger) Log(entry LogEntry) {
	if !l.IsEnabled(entry.Level) {
		return
	}
	var ev *logiface.Builder[*stumpy.Event]
	switch entry.Level {
	case LevelDebug:
		ev = l.inner.Debug()
	case LevelInfo:
		ev = l.inner.Info()
	case LevelWarn:
		ev = l.inner.Warning()
	default:
		ev = l.inner.Err()
	}
	if ev == nil {
		return
	}
	ev = ev.Str(`category`, entry.Category)
	if entry.ContextSerial != 0 {
		ev = ev.Int64(`ctx`, entry.ContextSerial)
	}
	if entry.FD != 0 {
		ev = ev.Int(`fd`, entry.FD)
	}
	for k, v := range entry.Fields {
		ev = ev.Interface(k, v)
	}
	if entry.Err != nil {
		ev = ev.Err(entry.Err)
	}
	ev.Log(entry.Message)
}

// Helper functions for common logging call sites.

func LogDebug(l Logger, category, message string, fields map[string]interface{}) {
	if !l.IsEnabled(LevelDebug) {
		return
	}
	l.Log(LogEntry{Level: LevelDebug, Category: category, Message: message, Fields: fields, Timestamp: time.Now()})
}

func LogInfo(l Logger, category, message string, fields map[string]interface{}) {
	if !l.IsEnabled(LevelInfo) {
		return
	}
	l.Log(LogEntry{Level: LevelInfo, Category: category, Message: message, Fields: fields, Timestamp: time.Now()})
}

func LogWarn(l Logger, category, message string, fields map[string]interface{}) {
	if !l.IsEnabled(LevelWarn) {
		return
	}
	l.Log(LogEntry{Level: LevelWarn, Category: category, Message: message, Fields: fields, Timestamp: time.Now()})
}

func LogError(l Logger, category, message string, err error, fields map[string]interface{}) {
	if !l.IsEnabled(LevelError) {
		return
	}
	l.Log(LogEntry{Level: LevelError, Category: category, Message: message, Err: err, Fields: fields, Timestamp: time.Now()})
}

// SDebug/SInfo/SWarn/SError log through the process-wide logger installed
// by SetStructuredLogger (a NoOpLogger if none has been installed).

func SDebug(category, message string, fields ...map[string]interface{}) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelDebug) {
		return
	}
	LogDebug(logger, category, message, firstFields(fields))
}

func SInfo(category, message string, fields ...map[string]interface{}) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelInfo) {
		return
	}
	LogInfo(logger, category, message, firstFields(fields))
}

func SWarn(category, message string, fields ...map[string]interface{}) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelWarn) {
		return
	}
	LogWarn(logger, category, message, firstFields(fields))
}

func SError(category, message string, err error, fields ...map[string]interface{}) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelError) {
		return
	}
	LogError(logger, category, message, err, firstFields(fields))
}

func firstFields(fields []map[string]interface{}) map[string]interface{} {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// fdtable/waitloop-specific convenience loggers, used by fdtable.go and
// waitloop.go so call sites stay a single line.

func logFDInserted(ctxSerial int64, fd int) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelDebug) {
		return
	}
	logger.Log(LogEntry{Level: LevelDebug, Category: "fdtable", ContextSerial: ctxSerial, FD: fd, Message: "fd inserted", Timestamp: time.Now()})
}

func logFDRemoved(ctxSerial int64, fd int) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelDebug) {
		return
	}
	logger.Log(LogEntry{Level: LevelDebug, Category: "fdtable", ContextSerial: ctxSerial, FD: fd, Message: "fd removed", Timestamp: time.Now()})
}

func logWaitLoopError(ctxSerial int64, err error) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelError) {
		return
	}
	logger.Log(LogEntry{Level: LevelError, Category: "waitloop", ContextSerial: ctxSerial, Err: err, Message: "wait loop error", Timestamp: time.Now()})
}
