package usage

import "strings"

// Record is one billable event.
//
// Records are values: callers build one when the usage is known and hand it
// to the reporting path. The reporting path copies what it needs, so the
// caller's Metadata slice is never retained.
type Record struct {
	// APIKey identifies the billed caller. Required.
	APIKey string

	// Module is the logical service family, e.g. "llm", "tts", "asr". Required.
	Module string

	// Model is the concrete backend identifier, e.g. "gpt-4". Required.
	Model string

	// Usage is the billable quantity. Must not be negative.
	Usage int64

	// Metadata carries optional, ordered context for the backend.
	Metadata Metadata
}

// New builds a Record, copying metadata so later changes by the caller
// cannot leak into the record.
func New(apiKey, module, model string, usage int64, metadata Metadata) Record {
	return Record{
		APIKey:   apiKey,
		Module:   module,
		Model:    model,
		Usage:    usage,
		Metadata: metadata.Clone(),
	}
}

// Validate checks the required fields.
//
// Returns a *ValidationError (matching ErrValidation) for the first problem found.
func (r Record) Validate() error {
	switch {
	case strings.TrimSpace(r.APIKey) == "":
		return &ValidationError{Field: "api_key", Reason: "is required"}
	case strings.TrimSpace(r.Module) == "":
		return &ValidationError{Field: "module", Reason: "is required"}
	case strings.TrimSpace(r.Model) == "":
		return &ValidationError{Field: "model", Reason: "is required"}
	case r.Usage < 0:
		return &ValidationError{Field: "usage", Reason: "must not be negative"}
	}
	return r.Metadata.validate()
}
