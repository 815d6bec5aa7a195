package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/uozi-tech/billing-sdk-go/billing"
	"github.com/uozi-tech/billing-sdk-go/internal/keystore"
	"github.com/uozi-tech/billing-sdk-go/internal/usage"
)

// handleHealth reports 200 while a billing session is up and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	code := http.StatusOK
	if !s.billing.IsConnected() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"state":   s.billing.Stats().State.String(),
		"version": s.version,
	})
}

// authorizeResponse is returned by POST /api/v1/authorize.
type authorizeResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Key     string `json:"key,omitempty"`
}

// handleAuthorize checks the Api-Key or ApiKey header. Missing keys get
// 401; blocked and unknown keys get 403.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	d := s.billing.RequireAPIKey(billing.MetadataFromHeader(r.Header))

	resp := authorizeResponse{
		Allowed: d.Allowed,
		Reason:  string(d.Reason),
	}
	if d.APIKey != "" {
		resp.Key = keystore.Mask(d.APIKey)
	}

	switch {
	case d.Allowed:
		writeJSON(w, http.StatusOK, resp)
	case d.Reason == billing.ReasonMissingKey:
		writeJSON(w, http.StatusUnauthorized, resp)
	default:
		s.logger.Info("api key denied",
			"key", keystore.Mask(d.APIKey),
			"reason", d.Reason,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeJSON(w, http.StatusForbidden, resp)
	}
}

// handleUsage relays one usage record. The body has the usage report shape:
//
//	{"api_key":"sk-...","module":"llm","model":"gpt-4","usage":150,"metadata":{...}}
//
// Metadata order is preserved. The response is 202 once the broker
// acknowledged the report.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "request body too large or unreadable")
		return
	}

	rec, err := usage.Decode(body)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.billing.ReportUsage(r.Context(), rec); err != nil {
		switch {
		case errors.Is(err, billing.ErrValidation):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case errors.Is(err, billing.ErrNotConnected):
			writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "billing backend not connected")
		case errors.Is(err, billing.ErrPublishFailed):
			writeError(w, http.StatusBadGateway, ErrCodeBadGateway, "usage report was not acknowledged")
		default:
			writeInternalError(w, "usage report failed")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
	})
}

// handleKeyRefresh asks the backend to resend the key list.
func (s *Server) handleKeyRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.billing.RequestKeyList(r.Context()); err != nil {
		switch {
		case errors.Is(err, billing.ErrNotConnected):
			writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "billing backend not connected")
		case r.Context().Err() != nil:
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "key list request rate limited")
		default:
			writeError(w, http.StatusBadGateway, ErrCodeBadGateway, "key list request failed")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "requested",
	})
}
