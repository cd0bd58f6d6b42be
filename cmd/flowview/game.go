package main

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/flowmap"
	"github.com/gogpu/flowmap/display"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	windowWidth  = 800
	windowHeight = 600
)

// game implements ebiten.Game. One Update is one flowmap frame.
type game struct {
	fm   *flowmap.Flowmap
	dist *display.Distorter
	log  *slog.Logger

	frame *image.RGBA
	img   *ebiten.Image
	w, h  int

	last     flowmap.Vec2
	tracking bool
	hud      bool
}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return errQuit
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.dist.SetMode(g.dist.Mode().Next())
		g.log.Info("display mode", "mode", g.dist.Mode())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.fm.Reset()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		g.hud = !g.hud
	}
	if g.w == 0 || g.h == 0 {
		return nil
	}

	cx, cy := ebiten.CursorPosition()
	p := flowmap.V2(float32(cx)/float32(g.w), 1-float32(cy)/float32(g.h))
	if !g.tracking {
		g.last = p
		g.tracking = true
	}
	v := p.Sub(g.last)
	g.last = p

	g.fm.SetPointer(p.X, p.Y)
	g.fm.SetVelocity(v.X, v.Y)
	g.fm.SetPressed(ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft))
	g.fm.Update()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	if g.frame == nil {
		return
	}
	if err := g.dist.Render(g.frame, g.fm.Read()); err != nil {
		g.log.Error("render", "err", err)
		return
	}
	g.img.ReplacePixels(g.frame.Pix)
	screen.DrawImage(g.img, nil)

	if g.hud {
		p := g.fm.Params()
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf(
			"mode %s  size %d  peak %.3f  tps %.0f\nspace: mode  r: reset  h: hud  esc: quit",
			g.dist.Mode(), g.fm.Size(), g.fm.Read().MaxIntensity(), ebiten.CurrentTPS(),
		), 10, 5)
		if p.PressedGate && !p.Pressed {
			ebitenutil.DebugPrintAt(screen, "hold the left button to stamp", 10, 40)
		}
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth > 0 && outsideHeight > 0 && (outsideWidth != g.w || outsideHeight != g.h) {
		g.w, g.h = outsideWidth, outsideHeight
		g.frame = image.NewRGBA(image.Rect(0, 0, g.w, g.h))
		if g.img != nil {
			g.img.Dispose()
		}
		g.img = ebiten.NewImage(g.w, g.h)
		g.fm.SetResolution(g.w, g.h)
	}
	return g.w, g.h
}
