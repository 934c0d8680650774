package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Versifine/locomotion/internal/bridge"
	"github.com/Versifine/locomotion/internal/config"
	"github.com/Versifine/locomotion/internal/controller"
	"github.com/Versifine/locomotion/internal/debug"
	"github.com/Versifine/locomotion/internal/event"
	"github.com/Versifine/locomotion/internal/logger"
	"github.com/Versifine/locomotion/internal/rig"
	"github.com/go-gl/mathgl/mgl64"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	console := flag.Bool("console", false, "drive a simulated rig from the terminal instead of serving the bridge")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	out, err := logger.OpenFile(cfg.Logging.File)
	if err != nil {
		slog.Error("Failed to open log file", "error", err)
		os.Exit(1)
	}
	defer out.Close()

	level := cfg.Logging.Level
	if *console && cfg.Logging.File == "" {
		// Keep the status line readable.
		level = "warn"
	}
	logger.Init(logger.Config{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: out,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := event.NewBus()
	bus.Subscribe(event.EventSnapTurn, func(raw any) {
		if evt, ok := raw.(event.SnapTurnEvent); ok {
			logger.L().Info("Snap turn", "session", evt.Source, "direction", evt.Direction.String())
		}
	})

	if *console {
		err = runConsole(ctx, cfg, bus)
	} else {
		err = runBridge(ctx, cfg, bus)
	}
	bus.Wait()
	if err != nil {
		slog.Error("Exited with error", "error", err)
		os.Exit(1)
	}
}

func runBridge(ctx context.Context, cfg *config.Config, bus *event.Bus) error {
	server, err := bridge.NewServer(cfg, bridge.WithBus(bus), bridge.WithLogger(logger.L()))
	if err != nil {
		return err
	}
	return server.Start(ctx)
}

func runConsole(ctx context.Context, cfg *config.Config, bus *event.Bus) error {
	r := rig.New(mgl64.Vec3{}, 0, rig.Transform{Position: mgl64.Vec3{0, 1.6, 0}})
	ctrl, err := controller.New(cfg, r,
		controller.WithBus(bus),
		controller.WithLogger(logger.L()),
		controller.WithSource("console"),
	)
	if err != nil {
		return err
	}
	c := debug.NewConsole(ctrl, r)
	defer c.Subscribe(bus)()
	return c.Start(ctx)
}
