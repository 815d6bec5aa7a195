package usage

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireRecord is the on-wire shape of a usage report.
type wireRecord struct {
	APIKey    string   `json:"api_key"`
	Module    string   `json:"module"`
	Model     string   `json:"model"`
	Usage     int64    `json:"usage"`
	Timestamp int64    `json:"timestamp"`
	EventID   string   `json:"event_id,omitempty"`
	Metadata  Metadata `json:"metadata,omitempty"`
}

// Encode renders r as a usage report payload.
//
// Parameters:
//   - r: The record to encode (validated first)
//   - eventID: Unique identifier for this report, lets the backend drop duplicates
//   - at: Report time, encoded as Unix milliseconds
//
// Returns:
//   - []byte: JSON payload
//   - error: *ValidationError if r is invalid or metadata cannot be encoded
func Encode(r Record, eventID string, at time.Time) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(wireRecord{
		APIKey:    r.APIKey,
		Module:    r.Module,
		Model:     r.Model,
		Usage:     r.Usage,
		Timestamp: at.UnixMilli(),
		EventID:   eventID,
		Metadata:  r.Metadata,
	})
	if err != nil {
		return nil, &ValidationError{Field: "metadata", Reason: fmt.Sprintf("is not encodable: %v", err)}
	}
	return payload, nil
}

// Decode parses a usage report payload. Timestamp and event ID are ignored;
// the caller gets back the record that was reported.
func Decode(payload []byte) (Record, error) {
	var w wireRecord
	if err := json.Unmarshal(payload, &w); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return Record{
		APIKey:   w.APIKey,
		Module:   w.Module,
		Model:    w.Model,
		Usage:    w.Usage,
		Metadata: w.Metadata,
	}, nil
}
