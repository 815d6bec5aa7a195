// Package billing reports metered usage to a billing backend over MQTT and
// authorises callers by API key against a locally cached key list.
//
// A process normally holds one Client, created with Initialize and fetched
// with Instance:
//
//	cfg := billing.NewConfig("mqtt.example.com", 8883, "svc", "secret")
//	cfg.Keys.UnknownPolicy = "deny"
//
//	client, err := billing.Initialize(cfg)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    log.Printf("billing offline, retrying in background: %v", err)
//	}
//
//	if d := client.RequireAPIKey(billing.MetadataFromHeader(r.Header)); !d.Allowed {
//	    return d.Err()
//	}
//	// ... serve the request ...
//	err = client.ReportUsage(ctx, billing.NewRecord(d.APIKey, "llm", "gpt-4", 150, nil))
//
// Usage is never queued: ReportUsage returns ErrNotConnected immediately
// while no session is up, and returns nil only after the broker
// acknowledged the report.
//
// A second Initialize with an identical Config returns the existing client.
// A different Config fails with ErrAlreadyInitialized. Reset tears the
// client down and clears the singleton, mainly for tests.
package billing
