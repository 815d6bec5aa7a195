// Package api implements the billing agent's HTTP API and WebSocket stream.
//
// The agent runs next to services that cannot link the Go SDK directly.
// They use it to check API keys and relay usage over plain HTTP:
//
//	GET  /api/v1/health      200 while a billing session is up, 503 otherwise
//	GET  /api/v1/status      connection, key store and runtime statistics
//	POST /api/v1/authorize   decision for the Api-Key or ApiKey header
//	POST /api/v1/usage       relay one usage record and wait for the ack
//	POST /api/v1/keys/refresh  ask the backend to resend the key list
//	GET  /api/v1/ws          stream of key status changes, keys masked
//	GET  /metrics            Prometheus exposition
//
// # Security
//
// When api.jwt_secret is set, the usage, refresh and websocket routes
// require an HS256 bearer token. Browsers that cannot set headers on a
// websocket upgrade may pass the token as the access_token query parameter.
// Health, status, metrics and authorize are open so load balancers and
// gateways can use them.
//
// Raw API keys are never logged or streamed; only keystore.Mask output
// leaves the process.
package api
