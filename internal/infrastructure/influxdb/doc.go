// Package influxdb writes acknowledged usage to InfluxDB v2.
//
// It is an optional telemetry sink: the billing backend remains the system
// of record, and a failing InfluxDB never blocks or fails usage reporting.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.RecordUsage(rec)
//
// Each record becomes one point in the billing_usage measurement, tagged
// with module, model and the masked API key. Writes are batched according
// to batch_size and flush_interval.
package influxdb
