package persistence

import (
	"context"
	"fmt"
	"strings"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/messages"
)

type InfluxConfig struct {
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
	Measurement  string
}

func (c InfluxConfig) validate() error {
	if c.InfluxURL == "" || c.InfluxToken == "" || c.InfluxOrg == "" || c.InfluxBucket == "" {
		return fmt.Errorf("influx config incomplete")
	}
	return nil
}

// NewInfluxClient returns the client plus the blocking writer and the querier
// the service runs on. The caller closes the client.
func NewInfluxClient(cfg InfluxConfig) (influxdb2.Client, api.WriteAPIBlocking, *InfluxQuerier, error) {
	if err := cfg.validate(); err != nil {
		return nil, nil, nil, err
	}
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMeasurement
	}
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	writer := client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket)
	querier := &InfluxQuerier{
		api:         client.QueryAPI(cfg.InfluxOrg),
		bucket:      cfg.InfluxBucket,
		measurement: cfg.Measurement,
	}
	return client, writer, querier, nil
}

type InfluxQuerier struct {
	api         api.QueryAPI
	bucket      string
	measurement string
}

func buildLatestFlux(bucket, measurement string, minutes int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q and r._field == "moisture")
  |> group(columns: ["sensor_id"])
  |> last()
  |> keep(columns: ["_time","_value","sensor_id","field_id"])
`, bucket, minutes, measurement)
}

func (q *InfluxQuerier) QueryLatest(ctx context.Context, minutes int) ([]messages.SensorData, error) {
	res, err := q.api.Query(ctx, buildLatestFlux(q.bucket, q.measurement, minutes))
	if err != nil {
		return nil, err
	}
	defer res.Close()

	var out []messages.SensorData
	for res.Next() {
		rec := res.Record()
		m := messages.SensorData{
			SensorID: stringValue(rec.ValueByKey("sensor_id")),
			FieldID:  stringValue(rec.ValueByKey("field_id")),
			// only aggregated readings are written to this measurement
			Aggregated: true,
			Timestamp:  rec.Time().UTC(),
		}
		switch v := rec.Value().(type) {
		case float64:
			m.Moisture = v
		case int64:
			m.Moisture = float64(v)
		default:
			continue
		}
		if m.SensorID == "" {
			continue
		}
		out = append(out, m)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
