// Package mqtt provides the MQTT transport for billing sessions.
//
// This package manages:
//   - Dialing the billing broker over TLS 1.2+ (or plain TCP for development)
//   - Publishing with QoS acknowledgements bounded by a context
//   - Topic subscriptions with in-order delivery and panic recovery
//   - Topic validation
//
// Dialer implements connection.Dialer. It does not reconnect on its own:
// each Dial creates a fresh paho client, and the connection manager in
// internal/connection decides when to dial again and with what backoff.
//
// # Security Considerations
//
//   - TLS is on by default with certificate verification against the system
//     roots or mqtt.broker.tls.ca_file
//   - insecure_skip_verify exists for self-signed brokers and must be set
//     explicitly
//   - Credentials are sent only inside the TLS session
//
// # Usage
//
//	dialer, err := mqtt.NewDialer(cfg.MQTT, cfg.Session.KeepAlive)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sess, err := dialer.Dial(ctx, func(err error) { log.Print("lost: ", err) })
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close(3 * time.Second)
//
//	err = sess.Publish(ctx, "billing/report", payload)
package mqtt
