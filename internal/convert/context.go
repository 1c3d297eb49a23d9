// Package convert implements colourspace and resolution conversion between
// frame formats.
package convert

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	"golang.org/x/image/draw"

	"github.com/linuxmatters/framecast/internal/frame"
)

// Params is the key of a conversion context. DstWidth and DstHeight default
// to the source size when zero.
type Params struct {
	SrcWidth  int
	SrcHeight int
	DstWidth  int
	DstHeight int
	SrcFormat frame.Format
	DstFormat frame.Format
	Algorithm Algorithm
}

// ConversionError reports a frame that does not match the context it was
// passed to.
type ConversionError struct {
	Role string // "source" or "destination"
	Want string
	Got  string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion context mismatch on %s frame: configured %s, got %s", e.Role, e.Want, e.Got)
}

// Context converts frames of one geometry and format into another. It is
// immutable after creation and safe to reuse for every frame of a session.
type Context struct {
	params  Params
	resize  bool
	workers int
}

// NewContext validates params and prepares a conversion context
func NewContext(p Params) (*Context, error) {
	if p.DstWidth == 0 {
		p.DstWidth = p.SrcWidth
	}
	if p.DstHeight == 0 {
		p.DstHeight = p.SrcHeight
	}
	if p.SrcWidth <= 0 || p.SrcHeight <= 0 || p.DstWidth <= 0 || p.DstHeight <= 0 {
		return nil, fmt.Errorf("invalid conversion size: %dx%d -> %dx%d", p.SrcWidth, p.SrcHeight, p.DstWidth, p.DstHeight)
	}
	if !p.SrcFormat.Valid() || !p.DstFormat.Valid() {
		return nil, fmt.Errorf("invalid conversion formats: %s -> %s", p.SrcFormat, p.DstFormat)
	}
	if _, ok := algorithmNames[p.Algorithm]; !ok {
		return nil, fmt.Errorf("invalid scaling algorithm: %s", p.Algorithm)
	}

	resize := p.SrcWidth != p.DstWidth || p.SrcHeight != p.DstHeight
	switch {
	case p.SrcFormat == p.DstFormat && !resize:
		// plane copy
	case p.SrcFormat.Packed():
		// packed RGB or grey into anything
	default:
		return nil, fmt.Errorf("unsupported conversion: %s %dx%d -> %s %dx%d",
			p.SrcFormat, p.SrcWidth, p.SrcHeight, p.DstFormat, p.DstWidth, p.DstHeight)
	}

	return &Context{
		params:  p,
		resize:  resize,
		workers: runtime.NumCPU(),
	}, nil
}

// Params returns the context key with defaults applied
func (c *Context) Params() Params {
	return c.params
}

// Convert overwrites dst with the converted image of src. src is read only.
func (c *Context) Convert(src, dst *frame.Frame) error {
	p := c.params
	if err := check("source", src, p.SrcWidth, p.SrcHeight, p.SrcFormat); err != nil {
		return err
	}
	if err := check("destination", dst, p.DstWidth, p.DstHeight, p.DstFormat); err != nil {
		return err
	}

	if p.SrcFormat == p.DstFormat && !c.resize {
		copyPlanes(src, dst)
		return nil
	}

	in := packedView{
		data:   src.Planes[0].Data,
		stride: src.Planes[0].Stride,
		layout: layoutOf(p.SrcFormat),
	}
	if c.resize {
		in = c.scale(in)
	}

	switch p.DstFormat {
	case frame.FormatYUV420P, frame.FormatNV12:
		c.parallel((p.DstHeight+1)/2, func(start, end int) {
			toYUV420(in, dst, start, end)
		})
	default:
		c.parallel(p.DstHeight, func(start, end int) {
			toPacked(in, dst, start, end)
		})
	}
	return nil
}

func check(role string, f *frame.Frame, width, height int, format frame.Format) error {
	want := fmt.Sprintf("%dx%d %s", width, height, format)
	if f == nil {
		return &ConversionError{Role: role, Want: want, Got: "nil frame"}
	}
	if f.Width != width || f.Height != height || f.Format != format {
		return &ConversionError{Role: role, Want: want, Got: fmt.Sprintf("%dx%d %s", f.Width, f.Height, f.Format)}
	}
	if err := f.Validate(); err != nil {
		return &ConversionError{Role: role, Want: want, Got: err.Error()}
	}
	return nil
}

// scale resamples a packed view to the destination size. The result is
// always RGBA.
func (c *Context) scale(in packedView) packedView {
	p := c.params
	srcImg := image.NewRGBA(image.Rect(0, 0, p.SrcWidth, p.SrcHeight))
	if in.layout == layoutOf(frame.FormatRGBA) {
		for y := 0; y < p.SrcHeight; y++ {
			copy(srcImg.Pix[y*srcImg.Stride:y*srcImg.Stride+p.SrcWidth*4], in.data[y*in.stride:])
		}
	} else {
		for y := 0; y < p.SrcHeight; y++ {
			row := srcImg.Pix[y*srcImg.Stride:]
			for x := 0; x < p.SrcWidth; x++ {
				r, g, b := in.rgb(x, y)
				row[x*4] = uint8(r)
				row[x*4+1] = uint8(g)
				row[x*4+2] = uint8(b)
				row[x*4+3] = 0xFF
			}
		}
	}

	dstImg := image.NewRGBA(image.Rect(0, 0, p.DstWidth, p.DstHeight))
	p.Algorithm.interpolator().Scale(dstImg, dstImg.Bounds(), srcImg, srcImg.Bounds(), draw.Src, nil)

	return packedView{
		data:   dstImg.Pix,
		stride: dstImg.Stride,
		layout: layoutOf(frame.FormatRGBA),
	}
}

// parallel splits rows [0, n) across workers
func (c *Context) parallel(n int, fn func(start, end int)) {
	workers := c.workers
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, n)
		return
	}

	rowsPerWorker := n / workers
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := start + rowsPerWorker
		if w == workers-1 {
			end = n
		}
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}

func copyPlanes(src, dst *frame.Frame) {
	for i := range src.Planes {
		rows := src.Format.PlaneHeight(i, src.Height)
		for y := 0; y < rows; y++ {
			copy(dst.Row(i, y), src.Row(i, y))
		}
	}
}
