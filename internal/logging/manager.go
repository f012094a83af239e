package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/mritc-tools/towpack/internal/otel"
)

// Manager manages slog-based logging with optional OTel integration.
type Manager struct {
	logger *slog.Logger

	// OTel provider for flushing
	provider *otel.Provider

	// Dynamic state callbacks, injected into every record when set.
	GetDeployment func() string
	GetPhase      func() string
	IsDryRun      func() bool
}

// NewManager creates a new slog-based logging manager.
func NewManager() *Manager {
	return &Manager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runContext returns the dynamic attributes for the current pipeline state.
func (m *Manager) runContext() []slog.Attr {
	var attrs []slog.Attr
	if m.GetDeployment != nil {
		if d := m.GetDeployment(); d != "" {
			attrs = append(attrs, slog.String("deployment", d))
		}
	}
	if m.GetPhase != nil {
		if p := m.GetPhase(); p != "" {
			attrs = append(attrs, slog.String("phase", p))
		}
	}
	if m.IsDryRun != nil && m.IsDryRun() {
		attrs = append(attrs, slog.Bool("dryRun", true))
	}
	return attrs
}

// Setup initializes the logging system with file and optional OTel output.
// If provider is nil or disabled, OTel logging is skipped.
func (m *Manager) Setup(file io.Writer, level string, provider *otel.Provider) {
	lvl := parseLevel(level)
	m.provider = provider

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	// Build list of handlers
	var handlers []slog.Handler

	// Console handler
	handlers = append(handlers, slog.NewTextHandler(os.Stdout, handlerOpts))

	// File handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	}

	// OTel handler (if the provider is enabled)
	if provider != nil && provider.Enabled() {
		otelHandler := otelslog.NewHandler("towpack",
			otelslog.WithLoggerProvider(provider.LoggerProvider()))
		handlers = append(handlers, otelHandler)
	}

	// Fan out to all handlers, with run context injected on each record
	fanout := NewMultiHandler(handlers...)
	m.logger = slog.New(NewContextHandler(fanout, m.runContext))
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *Manager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *Manager) Flush(ctx context.Context) error {
	if m.provider != nil {
		return m.provider.Flush(ctx)
	}
	return nil
}
