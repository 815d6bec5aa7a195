package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/uozi-tech/billing-sdk-go/internal/keystore"
	"github.com/uozi-tech/billing-sdk-go/internal/usage"
)

// MeasurementUsage is the measurement every usage point is written to.
const MeasurementUsage = "billing_usage"

// RecordUsage queues one acknowledged usage record. The API key is stored
// masked. Numeric metadata values become additional fields; other values
// are not written.
func (c *Client) RecordUsage(rec usage.Record) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(usagePoint(rec, c.now()))
}

func usagePoint(rec usage.Record, at time.Time) *write.Point {
	fields := map[string]any{
		"usage": rec.Usage,
	}
	for _, f := range rec.Metadata {
		if f.Key == "usage" {
			continue
		}
		switch v := f.Value.(type) {
		case int, int32, int64, uint, uint32, uint64, float32, float64:
			fields[f.Key] = v
		}
	}

	return write.NewPoint(
		MeasurementUsage,
		map[string]string{
			"module":  rec.Module,
			"model":   rec.Model,
			"api_key": keystore.Mask(rec.APIKey),
		},
		fields,
		at,
	)
}
