// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package flowcanvas

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/flowmap"
	"github.com/gogpu/flowmap/display"
	"github.com/gogpu/gpucontext"
)

// Common errors returned by Canvas operations.
var (
	// ErrCanvasClosed is returned when operations are attempted on a closed canvas.
	ErrCanvasClosed = errors.New("flowcanvas: canvas is closed")

	// ErrInvalidDimensions is returned when width or height is invalid.
	ErrInvalidDimensions = errors.New("flowcanvas: invalid dimensions")

	// ErrNilProvider is returned when a nil DeviceProvider is passed.
	ErrNilProvider = errors.New("flowcanvas: nil DeviceProvider")

	// ErrNilFlowmap is returned when a nil Flowmap is passed.
	ErrNilFlowmap = errors.New("flowcanvas: nil Flowmap")
)

// stripePeriod is the band width of the placeholder image in pixels.
const stripePeriod = 24

// textureDestroyer is the interface for destroying textures.
// This matches the gogpu.Texture.Destroy signature.
type textureDestroyer interface {
	Destroy()
}

// Canvas drives a Flowmap from window pointer events and presents the
// distorted image as a GPU texture.
//
// The Flowmap stays owned by the caller; Close does not close it.
type Canvas struct {
	fm       *flowmap.Flowmap
	dist     *display.Distorter
	frame    *image.RGBA
	provider gpucontext.DeviceProvider

	texture     any  // Lazy-created texture (*gogpu.Texture)
	oldTexture  any  // Previous texture awaiting deferred destruction
	dirty       bool // Needs GPU upload
	sizeChanged bool // Resize pending; texture must be recreated
	width       int
	height      int

	// Pointer in UV space. lastPointer is the position at the previous Step,
	// so the stamped velocity is the per-frame delta.
	pointer     flowmap.Vec2
	lastPointer flowmap.Vec2
	tracking    bool

	closed bool
}

// New creates a Canvas of width x height pixels presenting fm.
// The provider should come from gogpu.App.GPUContextProvider().
//
// The distorter starts with a striped placeholder image; replace it with
// Distorter().SetImage.
func New(provider gpucontext.DeviceProvider, fm *flowmap.Flowmap, width, height int) (*Canvas, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	if fm == nil {
		return nil, ErrNilFlowmap
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, width, height)
	}

	dist, err := display.New()
	if err != nil {
		return nil, err
	}
	dist.SetImage(display.Stripes(width, height, stripePeriod))

	fm.SetResolution(width, height)
	center := flowmap.V2(0.5, 0.5)
	return &Canvas{
		fm:          fm,
		dist:        dist,
		frame:       image.NewRGBA(image.Rect(0, 0, width, height)),
		provider:    provider,
		width:       width,
		height:      height,
		pointer:     center,
		lastPointer: center,
		dirty:       true, // Mark dirty so first Flush creates texture
	}, nil
}

// Flowmap returns the driven Flowmap.
func (c *Canvas) Flowmap() *flowmap.Flowmap {
	return c.fm
}

// Distorter returns the display stage. Use it to set the source image or
// the render mode.
func (c *Canvas) Distorter() *display.Distorter {
	return c.dist
}

// Frame returns the last rendered frame. Returns nil if the canvas is closed.
func (c *Canvas) Frame() *image.RGBA {
	if c.closed {
		return nil
	}
	return c.frame
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int {
	return c.width
}

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int {
	return c.height
}

// Size returns width and height as a convenience.
func (c *Canvas) Size() (width, height int) {
	return c.width, c.height
}

// IsDirty returns true if the canvas has pending changes
// that need to be uploaded to the GPU.
func (c *Canvas) IsDirty() bool {
	return c.dirty
}

// PointerMoved records the pointer position in window pixels, with the
// origin at the top-left. The first event only establishes the position.
func (c *Canvas) PointerMoved(x, y float32) {
	if c.closed {
		return
	}
	p := flowmap.V2(x/float32(c.width), 1-y/float32(c.height))
	if !p.IsFinite() {
		return
	}
	c.pointer = p
	if !c.tracking {
		c.lastPointer = p
		c.tracking = true
	}
}

// PointerPressed records the button state. It only matters when the Flowmap
// was created with the pressed gate.
func (c *Canvas) PointerPressed(pressed bool) {
	if c.closed {
		return
	}
	c.fm.SetPressed(pressed)
}

// Pointer returns the current pointer position in UV space.
func (c *Canvas) Pointer() flowmap.Vec2 {
	return c.pointer
}

// Step advances the effect by one frame: it hands the pointer position and
// its delta since the previous Step to the Flowmap, runs Update, and renders
// the new field into the frame.
func (c *Canvas) Step() error {
	if c.closed {
		return ErrCanvasClosed
	}
	v := c.pointer.Sub(c.lastPointer)
	c.fm.SetPointer(c.pointer.X, c.pointer.Y)
	c.fm.SetVelocity(v.X, v.Y)
	c.fm.Update()
	c.lastPointer = c.pointer

	if err := c.dist.Render(c.frame, c.fm.Read()); err != nil {
		return fmt.Errorf("flowcanvas: render: %w", err)
	}
	c.dirty = true
	return nil
}

// Resize changes canvas dimensions. The Flowmap aspect ratio follows; its
// buffer size does not.
//
// Returns error if dimensions are invalid or canvas is closed.
func (c *Canvas) Resize(width, height int) error {
	if c.closed {
		return ErrCanvasClosed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, width, height)
	}

	// No-op if dimensions haven't changed
	if c.width == width && c.height == height {
		return nil
	}

	c.frame = image.NewRGBA(image.Rect(0, 0, width, height))
	c.fm.SetResolution(width, height)
	flowmap.Logger().Debug("flowcanvas: resized", "width", width, "height", height)

	c.width = width
	c.height = height
	c.sizeChanged = true
	c.dirty = true

	return nil
}

// Flush uploads the frame to the GPU texture if dirty.
// Returns the texture for manual drawing if needed.
//
// The texture is created lazily on first Flush().
// Subsequent calls only upload data if dirty flag is set.
//
// Returns error if texture update fails, or if canvas is closed.
func (c *Canvas) Flush() (any, error) {
	if c.closed {
		return nil, ErrCanvasClosed
	}

	// The old texture may still be referenced by in-flight command buffers;
	// RenderTo destroys it once the replacement has been written.
	if c.sizeChanged {
		if c.texture != nil {
			if c.oldTexture != nil {
				if destroyer, ok := c.oldTexture.(textureDestroyer); ok {
					destroyer.Destroy()
				}
			}
			c.oldTexture = c.texture
			c.texture = nil
		}
		c.sizeChanged = false
	}

	if !c.dirty && c.texture != nil {
		return c.texture, nil
	}

	data := c.frame.Pix

	if c.texture == nil {
		c.texture = &pendingTexture{width: c.width, height: c.height, data: data}
		c.dirty = false
		return c.texture, nil
	}

	if pending, ok := c.texture.(*pendingTexture); ok {
		pending.data = data
	} else if updater, ok := c.texture.(gpucontext.TextureUpdater); ok {
		if err := updater.UpdateData(data); err != nil {
			return nil, fmt.Errorf("flowcanvas: texture update failed: %w", err)
		}
	}

	c.dirty = false
	return c.texture, nil
}

// Texture returns the current GPU texture without flushing.
// Returns nil if texture hasn't been created yet.
func (c *Canvas) Texture() any {
	return c.texture
}

// Provider returns the DeviceProvider associated with this canvas.
// Returns nil if the canvas is closed.
func (c *Canvas) Provider() gpucontext.DeviceProvider {
	if c.closed {
		return nil
	}
	return c.provider
}

// Close releases the textures. The Flowmap is left open.
// Close is idempotent - multiple calls are safe.
func (c *Canvas) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if c.oldTexture != nil {
		if destroyer, ok := c.oldTexture.(textureDestroyer); ok {
			destroyer.Destroy()
		}
		c.oldTexture = nil
	}
	if c.texture != nil {
		if destroyer, ok := c.texture.(textureDestroyer); ok {
			destroyer.Destroy()
		}
		c.texture = nil
	}

	c.frame = nil
	c.provider = nil
	return nil
}

// pendingTexture holds the frame until RenderTo has a texture creator.
type pendingTexture struct {
	width  int
	height int
	data   []byte
}
