// Package audit defines the security events emitted by the fetch
// pipeline and the writers that persist them. Events are fire-and-
// forget: nothing in the request path ever blocks on, or reads back
// from, the audit trail.
package audit

import (
	"time"

	"go.uber.org/zap"
)

// EventType classifies a security event.
type EventType int

const (
	EventUnspecified EventType = iota
	EventSSRFAttempt
	EventProtocolViolation
	EventPrivateIPAccess
	EventDNSRebinding
	EventRateLimitExceeded
	EventInvalidURL
	EventTimeout
	EventRedirectLimit
	EventContentTypeViolation
	EventSizeLimitExceeded
	EventFetchSuccess
	EventFetchFailure
)

// String returns the storage-stable event type name.
func (t EventType) String() string {
	switch t {
	case EventSSRFAttempt:
		return "SSRF_ATTEMPT"
	case EventProtocolViolation:
		return "PROTOCOL_VIOLATION"
	case EventPrivateIPAccess:
		return "PRIVATE_IP_ACCESS"
	case EventDNSRebinding:
		return "DNS_REBINDING"
	case EventRateLimitExceeded:
		return "RATE_LIMIT_EXCEEDED"
	case EventInvalidURL:
		return "INVALID_URL"
	case EventTimeout:
		return "TIMEOUT"
	case EventRedirectLimit:
		return "REDIRECT_LIMIT"
	case EventContentTypeViolation:
		return "CONTENT_TYPE_VIOLATION"
	case EventSizeLimitExceeded:
		return "SIZE_LIMIT_EXCEEDED"
	case EventFetchSuccess:
		return "FETCH_SUCCESS"
	case EventFetchFailure:
		return "FETCH_FAILURE"
	default:
		return "UNSPECIFIED"
	}
}

// Event is a single security event. Write-once; never read back by the
// pipeline.
type Event struct {
	RequestID string
	Type      EventType
	AccountID string
	SourceIP  string
	URL       string
	Reason    string
	UserAgent string
	LatencyMs float32
	Timestamp time.Time
}

// Writer is the interface for persisting security events.
// Write must NEVER block the caller.
type Writer interface {
	Write(event *Event)
	Close()
}

// LogWriter is a fallback Writer for local development. It logs events
// as structured JSON via zap.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter that outputs events to the given logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event *Event) {
	w.logger.Info("security_event",
		zap.String("request_id", event.RequestID),
		zap.String("event_type", event.Type.String()),
		zap.String("account_id", event.AccountID),
		zap.String("source_ip", event.SourceIP),
		zap.String("url", event.URL),
		zap.String("reason", event.Reason),
		zap.Float32("latency_ms", event.LatencyMs),
	)
}

func (w *LogWriter) Close() {}
