// Package usage defines the billable usage record and its wire encoding.
//
// A Record describes one billable event: which API key consumed how much of
// which model in which module. Records are plain values. The publish path
// encodes a record exactly once, at publish time, and never stores it.
//
// # Wire Format
//
// Records are published as JSON on the usage report topic:
//
//	{
//	  "api_key": "sk-...",
//	  "module": "llm",
//	  "model": "gpt-4",
//	  "usage": 150,
//	  "timestamp": 1735689600000,
//	  "event_id": "3f1c...",
//	  "metadata": {"prompt_tokens": 100}
//	}
//
// The field names are a contract with the billing backend and must not change.
// "metadata" is omitted when empty and preserves insertion order.
package usage
