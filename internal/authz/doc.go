// Package authz decides whether a call carrying an API key may proceed.
//
// Check is a pure function: it extracts the key from call metadata, looks it
// up in the key store and returns a Decision. It performs no I/O and keeps no
// reference to the key after returning. Translating a denial into a rejected
// call is the caller's job (see package grpcbilling and the agent HTTP API).
//
// Keys that were never reported by the backend are handled by an explicit
// Policy. There is no default: configuration must choose PolicyAllow or
// PolicyDeny.
package authz
