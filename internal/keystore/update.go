package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedUpdate is returned when a key-status payload cannot be parsed.
var ErrMalformedUpdate = errors.New("keystore: malformed key status update")

// Update is one key status change received from the backend.
type Update struct {
	Key    string
	Status Status
	Reason string
}

// updateEntry is one element of the backend's "updates" array.
type updateEntry struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// updateMessage accepts both the batch form
//
//	{"timestamp": 1735689600000, "updates": [{"key": "...", "status": "blocked", "reason": "..."}]}
//
// and a single inline update {"key": "...", "status": "ok"}.
type updateMessage struct {
	Updates []updateEntry `json:"updates"`
	updateEntry
}

// ParseUpdates decodes a key-status payload.
//
// Entries without a key or with an unrecognised status are skipped and
// counted in skipped; the remaining entries are returned in payload order.
//
// Returns:
//   - []Update: Well-formed updates, in order
//   - int: Number of skipped entries
//   - error: ErrMalformedUpdate if the payload is not a usable JSON object
func ParseUpdates(payload []byte) ([]Update, int, error) {
	var msg updateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrMalformedUpdate, err)
	}

	entries := msg.Updates
	if msg.updateEntry.Key != "" || msg.updateEntry.Status != "" {
		entries = append(entries, msg.updateEntry)
	}
	if len(entries) == 0 && msg.Updates == nil {
		return nil, 0, fmt.Errorf("%w: no updates", ErrMalformedUpdate)
	}

	updates := make([]Update, 0, len(entries))
	skipped := 0
	for _, e := range entries {
		if e.Key == "" {
			skipped++
			continue
		}
		status, err := ParseStatus(e.Status)
		if err != nil {
			skipped++
			continue
		}
		updates = append(updates, Update{Key: e.Key, Status: status, Reason: e.Reason})
	}
	return updates, skipped, nil
}
