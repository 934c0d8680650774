package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/Versifine/locomotion/internal/config"
	"github.com/Versifine/locomotion/internal/controller"
	"github.com/Versifine/locomotion/internal/logger"
	"github.com/Versifine/locomotion/internal/preview"
	"github.com/Versifine/locomotion/internal/preview/scene"
	"github.com/Versifine/locomotion/internal/rig"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	// Offset the head from the rig origin so turning visibly pivots around it.
	r := rig.New(mgl64.Vec3{}, 0, rig.Transform{Position: mgl64.Vec3{0.4, 1.6, -0.3}})
	ctrl, err := controller.New(cfg, r, controller.WithLogger(logger.L()), controller.WithSource("preview"))
	if err != nil {
		slog.Error("Failed to create controller", "error", err)
		os.Exit(1)
	}

	ebiten.SetWindowSize(preview.ScreenWidth, preview.ScreenHeight)
	ebiten.SetWindowTitle("Locomotion preview")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(preview.NewGame(scene.New(ctrl, r), logger.L())); err != nil {
		slog.Error("Preview exited", "error", err)
		os.Exit(1)
	}
}
