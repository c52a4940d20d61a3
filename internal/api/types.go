package api

import "time"

// --- POST /v1/metadata request/response ---

// FetchMetadataRequest is the JSON body for POST /v1/metadata.
type FetchMetadataRequest struct {
	URL string `json:"url"`
}

// FetchMetadataResponse is returned on a successful fetch. URL is the
// final URL after following redirects, not the submitted one.
type FetchMetadataResponse struct {
	Title   *string `json:"title"`
	Favicon *string `json:"favicon"`
	URL     string  `json:"url"`
}

// --- Account CRUD ---

// CreateAccountReq is the JSON body for POST /api/linkguard/accounts.
type CreateAccountReq struct {
	Name string `json:"name"`
}

// CreateAccountResp includes the plaintext API key (shown once).
type CreateAccountResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKey       string    `json:"api_key"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	CreatedAt    time.Time `json:"created_at"`
}

// UpdateAccountReq is the JSON body for PATCH /api/linkguard/accounts/{id}.
type UpdateAccountReq struct {
	Name *string `json:"name,omitempty"`
}

// AccountResp is an account without its plaintext key.
type AccountResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RotateKeyResp includes the new plaintext API key (shown once).
type RotateKeyResp struct {
	APIKey       string `json:"api_key"`
	APIKeyPrefix string `json:"api_key_prefix"`
}

// --- Security Events ---

// SecurityEventResp is one audit trail entry.
type SecurityEventResp struct {
	RequestID string    `json:"request_id"`
	EventType string    `json:"event_type"`
	AccountID string    `json:"account_id"`
	SourceIP  string    `json:"source_ip"`
	URL       string    `json:"url"`
	Reason    *string   `json:"reason"`
	UserAgent *string   `json:"user_agent"`
	LatencyMs float32   `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// EventListResp is the paginated event listing.
type EventListResp struct {
	Events   []SecurityEventResp `json:"events"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
