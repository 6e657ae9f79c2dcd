// Package logger wraps zerolog with the component-tagged, map-field logging
// style used throughout voicememo.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl      zerolog.Logger
	service string
}

// New writes to stdout, or stderr when cfg.Output says so.
func New(cfg *Config, serviceName string) *Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		w = os.Stderr
	}
	return NewWithWriter(cfg, serviceName, w)
}

// NewWithWriter writes to w. An unknown level means info.
func NewWithWriter(cfg *Config, serviceName string, w io.Writer) *Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(w).Level(level).With()
	if strings.EqualFold(cfg.Format, "console") {
		ctx = zerolog.New(console(w, serviceName, cfg.NoColor)).Level(level).With()
	} else {
		ctx = ctx.Str("service", serviceName)
	}
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return &Logger{zl: ctx.Logger(), service: serviceName}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func (l *Logger) WithComponent(name string) *Logger {
	return l.WithFields(map[string]interface{}{FieldComponent: name})
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zl: ctx.Logger(), service: l.service}
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	write(l.zl.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	write(l.zl.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	write(l.zl.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	write(l.zl.Error(), msg, fields)
}

func write(e *zerolog.Event, msg string, fields []map[string]interface{}) {
	if e == nil {
		return
	}
	for _, m := range fields {
		e.Fields(m)
	}
	e.Msg(msg)
}

var global atomic.Pointer[Logger]

// Init builds the process-wide logger from cfg and returns it.
func Init(cfg Config, serviceName string) *Logger {
	cfg.ApplyDefaults()
	l := New(&cfg, serviceName)
	global.Store(l)
	return l
}

// WithComponent tags the process-wide logger. Before Init it logs to
// stdout at info level.
func WithComponent(name string) *Logger {
	l := global.Load()
	if l == nil {
		cfg := Config{}
		cfg.ApplyDefaults()
		l = New(&cfg, "voicememo")
		global.CompareAndSwap(nil, l)
		l = global.Load()
	}
	return l.WithComponent(name)
}

var levelTags = map[string]string{
	"trace": "TRC", "debug": "DBG", "info": "INF", "warn": "WRN", "error": "ERR", "fatal": "FTL",
}

var levelColors = map[string]int{
	"DBG": 36, "INF": 32, "WRN": 33, "ERR": 31, "FTL": 35,
}

// console prints "[VOI][INF] message key:value", the service shortened to
// three letters.
func console(w io.Writer, serviceName string, noColor bool) zerolog.ConsoleWriter {
	paint := func(s string, color int) string {
		if noColor || color == 0 {
			return s
		}
		return fmt.Sprintf("\033[%dm%s\033[0m", color, s)
	}
	prefix := ""
	if len(serviceName) >= 3 {
		prefix = paint("["+strings.ToUpper(serviceName[:3])+"]", 34)
	}
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    noColor,
		FormatLevel: func(i interface{}) string {
			level := fmt.Sprint(i)
			tag, ok := levelTags[level]
			if !ok {
				tag = strings.ToUpper(level)
			}
			return prefix + paint("["+tag+"]", levelColors[tag])
		},
		FormatFieldName: func(i interface{}) string { return fmt.Sprint(i) + ":" },
	}
}
