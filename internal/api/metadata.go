package api

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/aloe-labs/linkguard/internal/audit"
	"github.com/aloe-labs/linkguard/internal/fetcher"
	"github.com/aloe-labs/linkguard/internal/metadata"
	"github.com/aloe-labs/linkguard/internal/ratelimit"
	"github.com/aloe-labs/linkguard/internal/urlcheck"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxURLLength caps submitted URLs. Upstream schema validation enforces
// the same bound; it is re-checked here because upstream is not trusted.
const maxURLLength = 2048

// genericSecurityDetail is the only thing a caller learns about a
// security rejection. The real category goes to the audit trail, never
// to the response: revealing which check fired would let an attacker
// probe the internal network by bisecting URLs.
const genericSecurityDetail = "This URL cannot be accessed for security reasons."

// handleFetchMetadata implements POST /v1/metadata.
// Auth middleware has already validated the Bearer token and injected the account.
func (d *Dependencies) handleFetchMetadata(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.New().String()

	var req FetchMetadataRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "url is required"})
		return
	}
	if len(req.URL) > maxURLLength {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "url must be at most 2048 characters"})
		return
	}

	account := accountFromContext(r.Context())
	if account == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing account context"})
		return
	}
	sourceIP := clientIP(r)

	// Fire-and-forget audit emission; latency is measured from request start.
	emit := func(eventType audit.EventType, url, reason string) {
		d.Writer.Write(&audit.Event{
			RequestID: requestID,
			Type:      eventType,
			AccountID: account.ID,
			SourceIP:  sourceIP,
			URL:       url,
			Reason:    reason,
			UserAgent: r.UserAgent(),
			LatencyMs: float32(time.Since(start)) / float32(time.Millisecond),
			Timestamp: time.Now(),
		})
	}

	if !d.Limiter.Allow(ratelimit.UserKey(account.ID), d.UserRateLimit, ratelimit.DefaultWindow) {
		emit(audit.EventRateLimitExceeded, req.URL, "per-account limit")
		writeJSON(w, http.StatusTooManyRequests, ErrorResp{Detail: "Rate limit exceeded. Please try again later."})
		return
	}
	if !d.Limiter.Allow(ratelimit.IPKey(sourceIP), d.IPRateLimit, ratelimit.DefaultWindow) {
		emit(audit.EventRateLimitExceeded, req.URL, "per-ip limit")
		writeJSON(w, http.StatusTooManyRequests, ErrorResp{Detail: "Rate limit exceeded. Please try again later."})
		return
	}

	result, err := d.Fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		d.writeFetchError(w, err, req.URL, emit)
		return
	}
	defer result.Response.Body.Close()

	contentType := result.Response.Header.Get("Content-Type")
	if !allowedContentType(contentType) {
		emit(audit.EventContentTypeViolation, result.FinalURL, "content type "+contentType+" is not parseable")
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "URL does not point to an HTML page"})
		return
	}

	body, err := fetcher.ReadBounded(result.Response.Body, d.MaxContentSize)
	if err != nil {
		if errors.Is(err, fetcher.ErrSizeLimitExceeded) {
			emit(audit.EventSizeLimitExceeded, result.FinalURL, "content exceeded size limit")
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResp{Detail: "Content too large"})
			return
		}
		// A slow-drip body aborted by the final hop's deadline is a
		// timeout, same as a hop that never responded.
		if errors.Is(err, context.DeadlineExceeded) {
			emit(audit.EventTimeout, result.FinalURL, "body read timed out")
			writeJSON(w, http.StatusRequestTimeout, ErrorResp{Detail: "The URL took too long to respond"})
			return
		}
		d.Logger.Warn("body read failed", zap.String("url", result.FinalURL), zap.Error(err))
		emit(audit.EventFetchFailure, result.FinalURL, "body read failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to fetch URL metadata"})
		return
	}

	md := metadata.Parse(body, result.FinalURL)
	if md.Title == nil {
		title := metadata.FallbackTitle(result.FinalURL)
		md.Title = &title
	}

	emit(audit.EventFetchSuccess, result.FinalURL, "")
	writeJSON(w, http.StatusOK, FetchMetadataResponse{
		Title:   md.Title,
		Favicon: md.Favicon,
		URL:     result.FinalURL,
	})
}

// writeFetchError maps a fetch failure to its HTTP response and audit
// event. Security rejections share one generic response body.
func (d *Dependencies) writeFetchError(w http.ResponseWriter, err error, requestedURL string, emit func(audit.EventType, string, string)) {
	var valErr *fetcher.ValidationError
	switch {
	case errors.As(err, &valErr):
		emit(eventTypeForOutcome(valErr.Outcome), valErr.URL, valErr.Outcome.Reason)
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: genericSecurityDetail})

	case errors.Is(err, fetcher.ErrRequestTimeout):
		emit(audit.EventTimeout, requestedURL, "request timed out")
		writeJSON(w, http.StatusRequestTimeout, ErrorResp{Detail: "The URL took too long to respond"})

	case errors.Is(err, fetcher.ErrTooManyRedirects):
		emit(audit.EventRedirectLimit, requestedURL, "redirect limit exceeded")
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: genericSecurityDetail})

	case errors.Is(err, fetcher.ErrMissingRedirectLocation):
		emit(audit.EventFetchFailure, requestedURL, "redirect without location")
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: genericSecurityDetail})

	default:
		d.Logger.Warn("fetch failed", zap.String("url", requestedURL), zap.Error(err))
		emit(audit.EventFetchFailure, requestedURL, "fetch failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to fetch URL metadata"})
	}
}

// eventTypeForOutcome maps a validator rejection to its audit event
// type. A private-IP hit from DNS resolution (rather than a literal) is
// classified as rebinding.
func eventTypeForOutcome(out urlcheck.Outcome) audit.EventType {
	switch out.Category {
	case urlcheck.CategoryInvalidURL:
		return audit.EventInvalidURL
	case urlcheck.CategoryDisallowedProtocol:
		return audit.EventProtocolViolation
	case urlcheck.CategoryBlockedHostname:
		return audit.EventSSRFAttempt
	case urlcheck.CategoryPrivateIPTarget:
		if strings.Contains(out.Reason, "resolves") {
			return audit.EventDNSRebinding
		}
		return audit.EventPrivateIPAccess
	default:
		return audit.EventUnspecified
	}
}

// allowedContentType reports whether the response is page content the
// parser can handle.
func allowedContentType(header string) bool {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
