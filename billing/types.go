package billing

import (
	"net/http"

	"github.com/uozi-tech/billing-sdk-go/internal/authz"
	"github.com/uozi-tech/billing-sdk-go/internal/connection"
	"github.com/uozi-tech/billing-sdk-go/internal/infrastructure/config"
	"github.com/uozi-tech/billing-sdk-go/internal/keystore"
	"github.com/uozi-tech/billing-sdk-go/internal/usage"
)

// Usage records.
type (
	Record   = usage.Record
	Metadata = usage.Metadata
	Field    = usage.Field
)

// NewRecord builds a usage record. metadata is copied.
func NewRecord(apiKey, module, model string, quantity int64, metadata Metadata) Record {
	return usage.New(apiKey, module, model, quantity, metadata)
}

// Pairs builds ordered metadata from alternating keys and values.
func Pairs(kv ...any) Metadata {
	return usage.Pairs(kv...)
}

// Key status.
type (
	KeyStatus = keystore.Status
	KeyUpdate = keystore.Update
)

const (
	KeyUnknown = keystore.StatusUnknown
	KeyValid   = keystore.StatusValid
	KeyBlocked = keystore.StatusBlocked
)

// MaskKey redacts an API key for logs.
func MaskKey(key string) string {
	return keystore.Mask(key)
}

// Authorisation.
type (
	Decision        = authz.Decision
	Reason          = authz.Reason
	RequestMetadata = authz.Metadata
	Pair            = authz.Pair
	Policy          = authz.Policy
)

const (
	ReasonMissingKey = authz.ReasonMissingKey
	ReasonBlocked    = authz.ReasonBlocked
	ReasonUnknown    = authz.ReasonUnknown
)

// MetadataFromHeader collects request metadata from HTTP headers.
func MetadataFromHeader(h http.Header) RequestMetadata {
	return authz.FromHeader(h)
}

// ExtractAPIKey returns the first non-empty value of the Api-Key or ApiKey
// entry, matched case-insensitively.
func ExtractAPIKey(md RequestMetadata) (string, bool) {
	return authz.ExtractAPIKey(md)
}

// MetadataFromMap collects request metadata from a multi-valued map such as
// gRPC metadata.MD.
func MetadataFromMap(m map[string][]string) RequestMetadata {
	return authz.FromMap(m)
}

// Connection.
type (
	State          = connection.State
	Stats          = connection.Stats
	Dialer         = connection.Dialer
	Session        = connection.Session
	MessageHandler = connection.MessageHandler
	Logger         = connection.Logger
)

const (
	StateDisconnected = connection.StateDisconnected
	StateConnecting   = connection.StateConnecting
	StateConnected    = connection.StateConnected
	StateReconnecting = connection.StateReconnecting
	StateShuttingDown = connection.StateShuttingDown
)

// Config is the full SDK configuration. It is comparable with ==.
type Config = config.Config

// NewConfig returns the default configuration for a broker with TLS on.
// Keys.UnknownPolicy must still be set before Initialize.
func NewConfig(host string, port int, username, password string) Config {
	cfg := *config.Default()
	cfg.MQTT.Broker.Host = host
	cfg.MQTT.Broker.Port = port
	cfg.MQTT.Auth.Username = username
	cfg.MQTT.Auth.Password = password
	return cfg
}

// LoadConfig reads a YAML configuration file and applies BILLING_*
// environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return Config{}, err
	}
	return *cfg, nil
}
