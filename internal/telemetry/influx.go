package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/kkonteh97/AmmoCarExample/internal/shared/types"
)

const measurement = "vehicle"

// InfluxConfig locates the InfluxDB bucket samples are written to.
type InfluxConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	Token         string        `mapstructure:"token"`
	Org           string        `mapstructure:"org"`
	Bucket        string        `mapstructure:"bucket"`
	BatchSize     uint          `mapstructure:"batchSize"`
	FlushInterval time.Duration `mapstructure:"flushInterval"`
}

// PointWriter is the non-blocking write side of the InfluxDB client.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point)
}

// InfluxSink turns samples into line-protocol points.
type InfluxSink struct {
	writer  PointWriter
	vehicle string
	client  influxdb2.Client
	log     zerolog.Logger
}

// NewInfluxSink wraps an existing writer. vehicle tags every point.
func NewInfluxSink(w PointWriter, vehicle string, log zerolog.Logger) *InfluxSink {
	return &InfluxSink{writer: w, vehicle: vehicle, log: log}
}

// DialInflux connects to InfluxDB and returns a sink backed by the batching
// write API. Write errors are drained and logged.
func DialInflux(ctx context.Context, cfg InfluxConfig, vehicle string, log zerolog.Logger) (*InfluxSink, error) {
	if !cfg.Enabled {
		return nil, errors.New("influx sink disabled")
	}
	opts := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(cfg.BatchSize)
	}
	if cfg.FlushInterval > 0 {
		opts.SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	running, err := client.Ping(ctx)
	if err != nil || !running {
		client.Close()
		if err == nil {
			err = errors.New("server not running")
		}
		return nil, fmt.Errorf("influx ping %s: %w", cfg.URL, err)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			log.Error().Err(writeErr).Str("bucket", cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(writeAPI.Errors())

	log.Info().Str("url", cfg.URL).Str("bucket", cfg.Bucket).Msg("InfluxDB sink initialized")
	s := NewInfluxSink(writeAPI, vehicle, log)
	s.client = client
	return s, nil
}

func (s *InfluxSink) Record(sample types.TelemetrySample) {
	s.writer.WritePoint(Point(s.vehicle, sample))
}

// Close flushes pending points and releases the client.
func (s *InfluxSink) Close() {
	if f, ok := s.writer.(interface{ Flush() }); ok {
		f.Flush()
	}
	if s.client != nil {
		s.client.Close()
	}
}

// Point converts a sample to an InfluxDB point.
func Point(vehicle string, sample types.TelemetrySample) *influxdb2_write.Point {
	at := time.UnixMilli(sample.AtUnixMS).UTC()
	if sample.AtUnixMS == 0 {
		at = time.Now().UTC()
	}
	return influxdb2.NewPoint(
		measurement,
		map[string]string{
			"vehicle":   vehicle,
			"direction": Direction(sample.SpeedKmh, 1),
		},
		map[string]interface{}{
			"tick":         int64(sample.Tick),
			"speed_kmh":    sample.SpeedKmh,
			"steering":     sample.Steering,
			"engine_force": sample.EngineForce,
			"brake_force":  sample.BrakeForce,
			"pos_x":        sample.Position.X,
			"pos_y":        sample.Position.Y,
			"pos_z":        sample.Position.Z,
			"sub_steps":    int64(sample.SubSteps),
			"tick_ms":      sample.TickMS,
		},
		at,
	)
}
