package gologger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/philippzhuravlev/DTUEvent/core"
	"github.com/sirupsen/logrus"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

type Options struct {
	Level  string // trace, debug, info, warn, error
	Format string // text or json
	Output io.Writer
}

// LogrusProvider hands out glog loggers backed by one logrus instance,
// tagging each with a "logger" field carrying its name.
type LogrusProvider struct {
	base *logrus.Logger
}

func NewLogrusProvider(opts Options) (*LogrusProvider, error) {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	if opts.Output != nil {
		base.SetOutput(opts.Output)
	}
	level := strings.TrimSpace(opts.Level)
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("gologger: %w", err)
	}
	base.SetLevel(parsed)
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("gologger: unknown log format %q", opts.Format)
	}
	return &LogrusProvider{base: base}, nil
}

func (p *LogrusProvider) GetLogger(name string) glog.Logger {
	if p == nil || p.base == nil {
		return glog.Nop()
	}
	entry := logrus.NewEntry(p.base)
	if name = strings.TrimSpace(name); name != "" {
		entry = entry.WithField("logger", name)
	}
	return &logrusLogger{entry: entry}
}

type logrusLogger struct {
	entry *logrus.Entry
}

func (l *logrusLogger) Trace(msg string, args ...any) { l.with(args).Trace(msg) }
func (l *logrusLogger) Debug(msg string, args ...any) { l.with(args).Debug(msg) }
func (l *logrusLogger) Info(msg string, args ...any)  { l.with(args).Info(msg) }
func (l *logrusLogger) Warn(msg string, args ...any)  { l.with(args).Warn(msg) }
func (l *logrusLogger) Error(msg string, args ...any) { l.with(args).Error(msg) }
func (l *logrusLogger) Fatal(msg string, args ...any) { l.with(args).Fatal(msg) }

func (l *logrusLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	return &logrusLogger{entry: l.entry.WithContext(ctx)}
}

// with turns key/value pairs into redacted logrus fields. A dangling key is kept under "arg".
func (l *logrusLogger) with(args []any) *logrus.Entry {
	if len(args) == 0 {
		return l.entry
	}
	fields := make(map[string]any, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			fields["arg"] = args[i]
			break
		}
		fields[key] = args[i+1]
	}
	return l.entry.WithFields(logrus.Fields(core.RedactSensitiveMap(fields)))
}

var (
	_ glog.Logger         = (*logrusLogger)(nil)
	_ glog.LoggerProvider = (*LogrusProvider)(nil)
)
