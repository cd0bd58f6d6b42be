// Command flowview shows the flowmap effect in a window.
//
// Move the mouse to stamp the field. With the framebuffer preset the left
// button must be held. Keys: Space cycles the display mode, R clears the
// field, H toggles the status text, Escape quits.
//
// Usage:
//
//	flowview
//	flowview -preset framebuffer -image photo.jpg
//	flowview -config flowmap.toml -gpu
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/gogpu/flowmap"
	"github.com/gogpu/flowmap/display"
	"github.com/gogpu/flowmap/gpu"
	"github.com/hajimehoshi/ebiten/v2"

	_ "golang.org/x/image/webp"
)

var errQuit = errors.New("quit")

func main() {
	var (
		config = flag.String("config", "", "TOML configuration file")
		preset = flag.String("preset", flowmap.PresetFlowmap, "named preset when no -config is given")
		img    = flag.String("image", "", "source image (png, jpeg, webp); stripes if empty")
		mode   = flag.String("mode", "distort", "initial display mode: distort, flow or overlay")
		useGPU = flag.Bool("gpu", false, "run the accumulation pass on the GPU")
		debug  = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	flowmap.SetLogger(log)

	if err := run(*config, *preset, *img, *mode, *useGPU, log); err != nil {
		log.Error("flowview failed", "err", err)
		os.Exit(1)
	}
}

func run(config, preset, imgPath, modeName string, useGPU bool, log *slog.Logger) error {
	var (
		cfg flowmap.Config
		err error
	)
	if config != "" {
		cfg, err = flowmap.LoadConfig(config)
	} else {
		cfg, err = flowmap.ConfigPreset(preset)
	}
	if err != nil {
		return err
	}

	opts := cfg.Options()
	if useGPU {
		opts = append(opts, flowmap.WithAccelerator(gpu.NewAccelerator()))
	}
	fm, err := flowmap.New(opts...)
	if errors.Is(err, flowmap.ErrDevice) {
		log.Warn("GPU backend unavailable, using CPU", "err", err)
		fm, err = flowmap.New(cfg.Options()...)
	}
	if err != nil {
		return err
	}
	defer fm.Close()

	mode, err := display.ParseMode(modeName)
	if err != nil {
		return err
	}
	dist, err := display.New(display.WithMode(mode))
	if err != nil {
		return err
	}
	var src image.Image = display.Stripes(windowWidth, windowHeight, 24)
	if imgPath != "" {
		if src, err = imgio.Open(imgPath); err != nil {
			return fmt.Errorf("open image: %w", err)
		}
	}
	dist.SetImage(src)

	g := &game{fm: fm, dist: dist, log: log, hud: true}
	ebiten.SetWindowSize(windowWidth, windowHeight)
	ebiten.SetWindowTitle("flowmap")
	ebiten.SetWindowResizable(true)
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, errQuit) {
		return fmt.Errorf("run game: %w", err)
	}
	return nil
}
