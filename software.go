package flowmap

import "github.com/gogpu/flowmap/internal/parallel"

// minRowsPerTask keeps tiny buffers on a single task; splitting a 16-row
// buffer across workers costs more than the kernel itself.
const minRowsPerTask = 16

// accumulateRows runs the kernel for rows [y0, y1) of src into dst.
func accumulateRows(dst, src *Buffer, p *Params, y0, y1 int) {
	stamp := StampTexel(p)
	size := src.size
	for y := y0; y < y1; y++ {
		for x := 0; x < size; x++ {
			i := (y*size + x) * 4
			prev := Texel{R: src.data[i], G: src.data[i+1], B: src.data[i+2], A: src.data[i+3]}
			c := AccumulateTexel(prev, src.TexelUV(x, y), stamp, p)
			dst.data[i+0] = c.R
			dst.data[i+1] = c.G
			dst.data[i+2] = c.B
			dst.data[i+3] = c.A
		}
	}
}

// softwarePass runs the kernel over the whole buffer, split into row bands
// on the worker pool. It returns after every band has been written.
func softwarePass(pool *parallel.WorkerPool, dst, src *Buffer, p *Params) {
	size := src.size
	if pool == nil || pool.Workers() == 1 || size < 2*minRowsPerTask {
		accumulateRows(dst, src, p, 0, size)
		return
	}

	bands := parallel.SplitRows(size, pool.Workers(), minRowsPerTask)
	work := make([]func(), len(bands))
	for i, band := range bands {
		work[i] = func() {
			accumulateRows(dst, src, p, band.Start, band.End)
		}
	}
	pool.ExecuteAll(work)
}
