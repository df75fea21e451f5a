package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkonteh97/AmmoCarExample/internal/config"
	"github.com/kkonteh97/AmmoCarExample/internal/physics"
)

func TestRunReturnsSceneErrors(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.Scene.Chassis.Mass = 0

	err = run(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, physics.ErrInvalidMass)
}

func TestRunReturnsListenErrors(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.Scene.Props.Enabled = false
	cfg.Server.Addr = "256.0.0.1:bad"

	err = run(cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serve http")
}
