// Package keystore holds the process-local view of API key status.
//
// The billing backend pushes key status changes (valid or blocked) over the
// message bus. The connection layer parses those messages with ParseUpdates
// and applies them with Store.Upsert; every authorisation check reads the
// Store with Lookup.
//
// # Consistency
//
//   - One entry per key; the latest Upsert wins (arrival order, not payload time)
//   - Reads never block on I/O and never observe a partially written entry
//   - A key that was never seen reports StatusUnknown; what that means is a
//     policy decision made by the caller (see package authz)
//
// # Security
//
// API keys are secrets. Anything that logs or returns key-related errors
// must go through Mask, which never returns the full key.
package keystore
