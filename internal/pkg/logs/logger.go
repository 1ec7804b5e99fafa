package logs

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/labstack/gommon/log"
)

const defaultHeader = `{"time":"${time_rfc3339_nano}","level":"${level}"}`

// Logger writes JSON lines with attached fields.
type Logger struct {
	*log.Logger
	fields []any
}

// Option configures logger created by NewLogger.
type Option func(*log.Logger)

// WithOutput sets logger output.
func WithOutput(w io.Writer) Option {
	return func(l *log.Logger) {
		l.SetOutput(w)
	}
}

// WithLevel sets minimal logged level.
func WithLevel(level log.Lvl) Option {
	return func(l *log.Logger) {
		l.SetLevel(level)
	}
}

// NewLogger creates logger that writes to stderr with INFO level.
func NewLogger(options ...Option) *Logger {
	l := log.New("")
	l.SetHeader(defaultHeader)
	l.SetOutput(os.Stderr)
	l.SetLevel(log.INFO)
	for _, option := range options {
		option(l)
	}
	return &Logger{Logger: l}
}

// With returns logger that attaches fields to every line.
func (l *Logger) With(args ...any) *Logger {
	fields := make([]any, 0, len(args)+len(l.fields))
	fields = append(fields, args...)
	fields = append(fields, l.fields...)
	return &Logger{Logger: l.Logger, fields: fields}
}

func (l *Logger) Debug(args ...any) {
	l.write(log.DEBUG, args...)
}

func (l *Logger) Info(args ...any) {
	l.write(log.INFO, args...)
}

func (l *Logger) Warn(args ...any) {
	l.write(log.WARN, args...)
}

func (l *Logger) Error(args ...any) {
	l.write(log.ERROR, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.write(log.DEBUG, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.write(log.INFO, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.write(log.WARN, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.write(log.ERROR, fmt.Sprintf(format, args...))
}

func (l *Logger) write(level log.Lvl, args ...any) {
	if level < l.Level() {
		return
	}
	line := log.JSON{}
	setLogLine(line, args...)
	_, file, no, _ := runtime.Caller(2)
	line["file"] = fmt.Sprintf("%s:%d", file, no)
	setLogLine(line, l.fields...)
	switch level {
	case log.DEBUG:
		l.Logger.Debugj(line)
	case log.INFO:
		l.Logger.Infoj(line)
	case log.WARN:
		l.Logger.Warnj(line)
	default:
		l.Logger.Errorj(line)
	}
}

type LogField struct {
	Name  string
	Value any
}

func Any(name string, value any) LogField {
	return LogField{Name: name, Value: value}
}

func setLogLine(line log.JSON, args ...any) {
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
		case string:
			line["message"] = v
		case LogField:
			line[v.Name] = v.Value
		case error:
			line["error"] = v.Error()
		default:
			panic(fmt.Errorf("unsupported type: %T", arg))
		}
	}
}
