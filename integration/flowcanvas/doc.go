// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package flowcanvas connects a flowmap to a gogpu window.
//
// A Canvas owns the per-frame glue the effect needs on the host side:
//
//	pointer events -> Flowmap.Update -> display.Distorter -> RGBA frame -> GPU texture -> window
//
// # Usage
//
//	fm, _ := flowmap.New(flowmap.WithSize(128))
//	canvas, _ := flowcanvas.New(app.GPUContextProvider(), fm, 800, 600)
//	defer canvas.Close()
//	canvas.Distorter().SetImage(img)
//
//	// event handlers
//	canvas.PointerMoved(x, y)
//	canvas.PointerPressed(down)
//
//	// once per frame
//	canvas.Step()
//	canvas.RenderTo(dc.AsTextureDrawer())
//
// To run the accumulation pass on the window's device, create the Flowmap
// with flowmap.WithAccelerator(gpu.NewAccelerator()) and
// flowmap.WithDeviceProvider(provider).
//
// # Thread Safety
//
// Canvas is NOT safe for concurrent use. Call all methods from the thread
// running the window's frame loop.
package flowcanvas
