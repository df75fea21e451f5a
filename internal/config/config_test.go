package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkonteh97/AmmoCarExample/internal/physics"
	"github.com/kkonteh97/AmmoCarExample/internal/scene"
	"github.com/kkonteh97/AmmoCarExample/internal/simulation"
	"github.com/kkonteh97/AmmoCarExample/internal/vehicle"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8090", cfg.Server.Addr)
	assert.Equal(t, 30.0, cfg.Server.ReplicationHz)
	assert.Equal(t, simulation.DefaultConfig(), cfg.Simulation)
	assert.Equal(t, 2.0, cfg.Simulation.TimeScale)
	assert.Equal(t, vehicle.DefaultConfig(), cfg.Vehicle)
	assert.Equal(t, scene.DefaultConfig(), cfg.Scene)
	assert.Equal(t, physics.DefaultConfig(), cfg.Physics.World())
	assert.Equal(t, 1000, cfg.Telemetry.Capacity)
	assert.False(t, cfg.Telemetry.Influx.Enabled)
	assert.Equal(t, time.Second, cfg.Telemetry.Influx.FlushInterval)
	assert.Equal(t, uint(500), cfg.Telemetry.Influx.BatchSize)
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	dir := t.TempDir()
	body := `{
		"logLevel": "debug",
		"server": { "addr": ":9000" },
		"simulation": { "timeScale": 1 },
		"vehicle": { "maxEngineForce": 3000 },
		"scene": {
			"chassis": { "spawn": { "x": 2, "y": 3, "z": -4 } },
			"props": { "enabled": false, "loadDelay": "2s", "restitution": 0.6 }
		},
		"telemetry": { "influx": { "enabled": true, "bucket": "laps" } }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 1.0, cfg.Simulation.TimeScale)
	assert.Equal(t, 60.0, cfg.Simulation.TickHz)
	assert.Equal(t, 3000.0, cfg.Vehicle.MaxEngineForce)
	assert.Equal(t, vehicle.DefaultSteeringClamp, cfg.Vehicle.SteeringClamp)
	assert.Equal(t, scene.Vec{X: 2, Y: 3, Z: -4}, cfg.Scene.Chassis.Spawn)
	assert.Equal(t, 800.0, cfg.Scene.Chassis.Mass)
	assert.False(t, cfg.Scene.Props.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Scene.Props.LoadDelay)
	assert.Equal(t, 0.6, cfg.Scene.Props.Restitution)
	assert.Equal(t, 0.5, cfg.Scene.Props.Friction)
	assert.True(t, cfg.Telemetry.Influx.Enabled)
	assert.Equal(t, "laps", cfg.Telemetry.Influx.Bucket)
	assert.Equal(t, "carsim", cfg.Telemetry.Influx.Org)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"server":{"addr":":9000"}}`), 0644))
	t.Setenv("CARSIM_SERVER_ADDR", ":7777")
	t.Setenv("CARSIM_SIMULATION_TIMESCALE", "3")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, 3.0, cfg.Simulation.TimeScale)
}

func TestLoad_MissingDirUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path")
	require.NoError(t, err)
	assert.Equal(t, ":8090", cfg.Server.Addr)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"logLevel": `), 0644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}
