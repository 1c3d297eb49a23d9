// Package frame owns raw pixel-plane storage for video frames.
package frame

import (
	"fmt"
)

// Plane is one component buffer of a frame. Stride is the byte distance
// between the starts of consecutive rows and may exceed the row width.
type Plane struct {
	Data   []byte
	Stride int
}

// Frame is a single image with its planes and presentation timestamp.
// Plane memory belongs to the Frame that allocated it and must be returned
// through the Allocator that produced it.
type Frame struct {
	Width  int
	Height int
	Format Format
	Planes []Plane
	PTS    int64

	allocated bool
	released  bool
}

// Row returns the visible bytes of row y in the given plane
func (f *Frame) Row(plane, y int) []byte {
	p := f.Planes[plane]
	start := y * p.Stride
	return p.Data[start : start+f.Format.RowBytes(plane, f.Width)]
}

// PlaneSize returns the number of bytes covered by a plane, stride padding
// included.
func (f *Frame) PlaneSize(plane int) int {
	return f.Planes[plane].Stride * f.Format.PlaneHeight(plane, f.Height)
}

// Released reports whether Release has been called on the frame
func (f *Frame) Released() bool {
	return f.released
}

// Validate checks the plane layout against the frame geometry
func (f *Frame) Validate() error {
	if f.released {
		return fmt.Errorf("frame %dx%d %s: planes already released", f.Width, f.Height, f.Format)
	}
	if len(f.Planes) != f.Format.Planes() {
		return fmt.Errorf("frame %s: expected %d planes, got %d", f.Format, f.Format.Planes(), len(f.Planes))
	}
	for i, p := range f.Planes {
		minStride := f.Format.RowBytes(i, f.Width)
		if p.Stride < minStride {
			return fmt.Errorf("plane %d: stride %d below row width %d", i, p.Stride, minStride)
		}
		rows := f.Format.PlaneHeight(i, f.Height)
		if need := (rows-1)*p.Stride + minStride; len(p.Data) < need {
			return fmt.Errorf("plane %d: %d bytes, need at least %d", i, len(p.Data), need)
		}
	}
	return nil
}

// CopyFromPacked copies a packed single-plane image into plane 0, one row at
// a time. srcStride is the row pitch of data and may differ from the frame's
// own stride.
func (f *Frame) CopyFromPacked(data []byte, srcStride int) error {
	if !f.Format.Packed() {
		return fmt.Errorf("copy into %s: not a packed format", f.Format)
	}
	rowBytes := f.Format.RowBytes(0, f.Width)
	if srcStride < rowBytes {
		return fmt.Errorf("source stride %d below row width %d", srcStride, rowBytes)
	}
	if need := (f.Height-1)*srcStride + rowBytes; len(data) < need {
		return fmt.Errorf("source buffer holds %d bytes, need %d", len(data), need)
	}

	dst := f.Planes[0]
	for y := 0; y < f.Height; y++ {
		copy(dst.Data[y*dst.Stride:y*dst.Stride+rowBytes], data[y*srcStride:y*srcStride+rowBytes])
	}
	return nil
}
