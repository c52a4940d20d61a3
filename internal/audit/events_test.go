package audit

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEventTypeStrings(t *testing.T) {
	tests := []struct {
		typ  EventType
		want string
	}{
		{EventSSRFAttempt, "SSRF_ATTEMPT"},
		{EventProtocolViolation, "PROTOCOL_VIOLATION"},
		{EventPrivateIPAccess, "PRIVATE_IP_ACCESS"},
		{EventDNSRebinding, "DNS_REBINDING"},
		{EventRateLimitExceeded, "RATE_LIMIT_EXCEEDED"},
		{EventInvalidURL, "INVALID_URL"},
		{EventTimeout, "TIMEOUT"},
		{EventRedirectLimit, "REDIRECT_LIMIT"},
		{EventContentTypeViolation, "CONTENT_TYPE_VIOLATION"},
		{EventSizeLimitExceeded, "SIZE_LIMIT_EXCEEDED"},
		{EventFetchSuccess, "FETCH_SUCCESS"},
		{EventFetchFailure, "FETCH_FAILURE"},
		{EventUnspecified, "UNSPECIFIED"},
	}

	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("EventType(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestLogWriter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	w := NewLogWriter(zap.New(core))
	defer w.Close()

	w.Write(&Event{
		RequestID: "req-1",
		Type:      EventPrivateIPAccess,
		AccountID: "acct-1",
		URL:       "http://169.254.169.254/",
		Reason:    "private IP address is not allowed",
		Timestamp: time.Now(),
	})

	entries := logs.FilterMessage("security_event").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event_type"] != "PRIVATE_IP_ACCESS" {
		t.Errorf("event_type = %v", fields["event_type"])
	}
	if fields["url"] != "http://169.254.169.254/" {
		t.Errorf("url = %v", fields["url"])
	}
}
