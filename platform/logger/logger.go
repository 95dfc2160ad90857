// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// TenantIDKey is the context key for tenant ID
	TenantIDKey contextKey = "tenant_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and tenant_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if tenantID, ok := ctx.Value(TenantIDKey).(string); ok && tenantID != "" {
		newLogger = newLogger.WithTenantID(tenantID)
	}

	return newLogger
}

// WithTenantID returns a logger with tenant ID
func (l *Logger) WithTenantID(tenantID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("tenant_id", tenantID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// ProviderCall logs a call to the external telephony provider. Provider error
// bodies are surfaced verbatim so operators can diagnose failures.
func (l *Logger) ProviderCall(provider, operation string, err error) {
	if err != nil {
		l.Error("provider_call",
			slog.String("provider", provider),
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Info("provider_call",
		slog.String("provider", provider),
		slog.String("operation", operation),
	)
}

// WebhookRejected logs a rejected webhook delivery. The shared secret and the
// presented signature are never logged.
func (l *Logger) WebhookRejected(reason, clientIP string) {
	l.Warn("webhook_rejected",
		slog.String("reason", reason),
		slog.String("client_ip", clientIP),
	)
}

// OrphanedResource logs an external resource that compensation failed to
// release, marked for manual reconciliation.
func (l *Logger) OrphanedResource(provider, resourceID, tenantID string, err error) {
	l.Error("orphaned_resource_needs_manual_reconciliation",
		slog.String("provider", provider),
		slog.String("resource_id", resourceID),
		slog.String("tenant_id", tenantID),
		slog.String("release_error", err.Error()),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}

// QuotaExhausted logs a provider daily limit being hit
func (l *Logger) QuotaExhausted(provider string, limit int) {
	l.Warn("daily_quota_exhausted",
		slog.String("provider", provider),
		slog.Int("limit", limit),
	)
}
