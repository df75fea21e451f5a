package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kkonteh97/AmmoCarExample/internal/config"
	"github.com/kkonteh97/AmmoCarExample/internal/input"
	"github.com/kkonteh97/AmmoCarExample/internal/physics"
	"github.com/kkonteh97/AmmoCarExample/internal/registry"
	"github.com/kkonteh97/AmmoCarExample/internal/scene"
	"github.com/kkonteh97/AmmoCarExample/internal/server"
	"github.com/kkonteh97/AmmoCarExample/internal/shared/logger"
	"github.com/kkonteh97/AmmoCarExample/internal/simulation"
	"github.com/kkonteh97/AmmoCarExample/internal/telemetry"
	"github.com/kkonteh97/AmmoCarExample/internal/vehicle"
)

func main() {
	cfg, err := config.Load(getEnv("CARSIM_CONFIG_DIR", "."))
	if err != nil {
		boot := logger.New("carsim")
		boot.Fatal().Err(err).Msg("Failed loading config")
	}
	logger.Setup(cfg.LogLevel)
	log := logger.New("carsim")
	if cfg.LogFormat == "console" {
		log = logger.NewConsole("carsim")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("carsim stopped")
	}
}

// run owns every resource of the process and returns once the HTTP server
// has shut down, so deferred cleanup always happens before main exits.
func run(cfg config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	world := physics.NewWorld(cfg.Physics.World())
	reg := registry.New(world)
	sc, err := scene.Build(world, reg, cfg.Scene)
	if err != nil {
		return fmt.Errorf("build scene: %w", err)
	}

	if cfg.Scene.Props.Enabled {
		go func() {
			batch, err := scene.LoadProps(ctx, world, reg, cfg.Scene.Props)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("Failed loading props")
				}
				return
			}
			log.Info().Str("batch", batch.Name()).Int("count", batch.Count()).Msg("Props loaded")
		}()
	}

	store := telemetry.NewStore(cfg.Telemetry.Capacity)
	sinks := telemetry.Fanout{store}
	if cfg.Telemetry.Influx.Enabled {
		influx, err := telemetry.DialInflux(ctx, cfg.Telemetry.Influx, cfg.Telemetry.Vehicle, log)
		if err != nil {
			log.Warn().Err(err).Msg("InfluxDB sink unavailable, continuing without it")
		} else {
			defer influx.Close()
			sinks = append(sinks, influx)
		}
	}

	actions := input.NewActionState()
	driver, err := simulation.NewDriver(simulation.Options{
		Config:     cfg.Simulation,
		World:      world,
		Vehicle:    sc.Vehicle,
		Registry:   reg,
		Controller: vehicle.NewController(cfg.Vehicle),
		Actions:    actions,
		Sink:       sinks,
		Log:        log.With().Str("component", "driver").Logger(),
	})
	if err != nil {
		return fmt.Errorf("create frame driver: %w", err)
	}

	srv := server.New(server.Options{
		Frames:      driver,
		Batches:     reg,
		Actions:     actions,
		Store:       store,
		AllowOrigin: cfg.Server.AllowOrigin,
		Log:         log.With().Str("component", "server").Logger(),
	})

	simErr := make(chan error, 1)
	go func() {
		if err := driver.Run(ctx, cfg.Simulation.TickHz); err != nil {
			log.Error().Err(err).Msg("Simulation loop failed")
			simErr <- err
			stop()
		}
	}()
	go srv.RunReplication(ctx, cfg.Server.ReplicationHz)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", cfg.Server.Addr).
		Float64("tickHz", cfg.Simulation.TickHz).
		Float64("timeScale", cfg.Simulation.TimeScale).
		Msg("carsim listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	select {
	case err := <-simErr:
		return fmt.Errorf("simulation: %w", err)
	default:
	}
	log.Info().Msg("carsim stopped")
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
