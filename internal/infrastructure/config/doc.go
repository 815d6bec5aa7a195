// Package config handles loading and validating billing SDK configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with BILLING_* environment variables
//   - Validation of required fields, reporting every problem at once
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords, InfluxDB tokens and the API JWT secret should be set
//     via environment variables
//   - TLS is on by default with certificate verification; disabling
//     verification must be done explicitly
//   - keys.unknown_policy has no default and must be chosen explicitly
//
// Usage:
//
//	cfg, err := config.Load("configs/billing.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.Host)
package config
