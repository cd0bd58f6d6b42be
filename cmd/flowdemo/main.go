// Command flowdemo renders the flowmap effect headlessly.
//
// It moves a virtual pointer along a Lissajous curve, runs the accumulation
// pass every frame and writes the distorted image and the raw flow field as
// PNG files.
//
// Usage:
//
//	flowdemo -frames 120 -every 30 -out frames/
//	flowdemo -preset framebuffer -image photo.jpg -mode overlay
//	flowdemo -config flowmap.toml -gpu -v
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/chewxy/math32"
	"github.com/gogpu/flowmap"
	"github.com/gogpu/flowmap/display"
	"github.com/gogpu/flowmap/gpu"

	// Register WebP decoding for -image.
	_ "golang.org/x/image/webp"
)

type settings struct {
	config string
	preset string
	frames int
	every  int
	out    string
	image  string
	width  int
	height int
	mode   string
	gpu    bool
	debug  bool
}

func main() {
	var s settings
	flag.StringVar(&s.config, "config", "", "TOML configuration file")
	flag.StringVar(&s.preset, "preset", flowmap.PresetFlowmap, "named preset when no -config is given")
	flag.IntVar(&s.frames, "frames", 90, "number of frames to simulate")
	flag.IntVar(&s.every, "every", 0, "write every n-th frame (0 writes only the last)")
	flag.StringVar(&s.out, "out", ".", "output directory")
	flag.StringVar(&s.image, "image", "", "source image (png, jpeg, webp); stripes if empty")
	flag.IntVar(&s.width, "width", 800, "output width")
	flag.IntVar(&s.height, "height", 600, "output height")
	flag.StringVar(&s.mode, "mode", "distort", "display mode: distort, flow or overlay")
	flag.BoolVar(&s.gpu, "gpu", false, "run the accumulation pass on the GPU")
	flag.BoolVar(&s.debug, "v", false, "verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if s.debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	flowmap.SetLogger(log)

	if err := run(s, log); err != nil {
		log.Error("flowdemo failed", "err", err)
		os.Exit(1)
	}
}

func run(s settings, log *slog.Logger) error {
	if s.width <= 0 || s.height <= 0 || s.frames <= 0 || s.every < 0 {
		return fmt.Errorf("width, height and frames must be positive and -every must not be negative")
	}

	cfg, err := loadConfig(s)
	if err != nil {
		return err
	}
	fm, err := newFlowmap(cfg, s.gpu, log)
	if err != nil {
		return err
	}
	defer fm.Close()
	fm.SetResolution(s.width, s.height)

	mode, err := display.ParseMode(s.mode)
	if err != nil {
		return err
	}
	dist, err := display.New(display.WithMode(mode))
	if err != nil {
		return err
	}
	src, err := loadImage(s)
	if err != nil {
		return err
	}
	dist.SetImage(src)

	if err := os.MkdirAll(s.out, 0o755); err != nil {
		return err
	}

	frame := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	path := lissajous{ax: 0.35, ay: 0.3, fx: 1, fy: 2, phase: math32.Pi / 4}
	prev := path.at(0)
	// With the pressed gate the button is released for the last third, so
	// the output shows the trail fading.
	release := s.frames * 2 / 3

	for i := 0; i < s.frames; i++ {
		p := path.at(float32(i) / float32(s.frames))
		v := p.Sub(prev)
		prev = p

		fm.SetPointer(p.X, p.Y)
		fm.SetVelocity(v.X, v.Y)
		fm.SetPressed(i < release)
		fm.Update()

		last := i == s.frames-1
		if !last && (s.every == 0 || (i+1)%s.every != 0) {
			continue
		}
		if err := dist.Render(frame, fm.Read()); err != nil {
			return err
		}
		if err := writeFrame(s, i, frame, fm.Read()); err != nil {
			return err
		}
		log.Info("frame written", "frame", i+1, "max_intensity", fm.Read().MaxIntensity())
	}
	return nil
}

func loadConfig(s settings) (flowmap.Config, error) {
	if s.config != "" {
		return flowmap.LoadConfig(s.config)
	}
	return flowmap.ConfigPreset(s.preset)
}

// newFlowmap creates the flowmap, retrying on the CPU if the GPU backend
// cannot be attached.
func newFlowmap(cfg flowmap.Config, useGPU bool, log *slog.Logger) (*flowmap.Flowmap, error) {
	opts := cfg.Options()
	if !useGPU {
		return flowmap.New(opts...)
	}
	fm, err := flowmap.New(append(opts, flowmap.WithAccelerator(gpu.NewAccelerator()))...)
	if errors.Is(err, flowmap.ErrDevice) {
		log.Warn("GPU backend unavailable, using CPU", "err", err)
		return flowmap.New(opts...)
	}
	return fm, err
}

func loadImage(s settings) (image.Image, error) {
	if s.image == "" {
		return display.Stripes(s.width, s.height, 24), nil
	}
	img, err := imgio.Open(s.image)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	return img, nil
}

func writeFrame(s settings, i int, frame *image.RGBA, field *flowmap.Buffer) error {
	name := filepath.Join(s.out, fmt.Sprintf("frame_%04d.png", i+1))
	if err := imgio.Save(name, frame, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}

	// The flow field is small; upscale it to the frame size for viewing.
	flowImg := transform.Resize(field.ToImage(), s.width, s.height, transform.NearestNeighbor)
	name = filepath.Join(s.out, fmt.Sprintf("flow_%04d.png", i+1))
	if err := imgio.Save(name, flowImg, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// lissajous is a pointer path in UV space centered on (0.5, 0.5).
type lissajous struct {
	ax, ay float32
	fx, fy float32
	phase  float32
}

func (l lissajous) at(t float32) flowmap.Vec2 {
	a := 2 * math32.Pi * t
	return flowmap.V2(
		0.5+l.ax*math32.Sin(l.fx*a+l.phase),
		0.5+l.ay*math32.Sin(l.fy*a),
	)
}
