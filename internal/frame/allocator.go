package frame

import (
	"fmt"
	"sync"
)

// DefaultAlign is the stride alignment used by NewAllocator, matching what
// SIMD-oriented encoders expect.
const DefaultAlign = 32

// DoubleReleaseError is returned when a frame's planes are released twice or
// were never allocated.
type DoubleReleaseError struct {
	Format         Format
	NeverAllocated bool
}

func (e *DoubleReleaseError) Error() string {
	if e.NeverAllocated {
		return fmt.Sprintf("release of %s frame that was never allocated", e.Format)
	}
	return fmt.Sprintf("double release of %s frame", e.Format)
}

// Allocator hands out plane storage with aligned strides and recycles it on
// Release. Buffers are pooled by size so a session that allocates the same
// geometry every frame reuses memory after the first iteration.
type Allocator struct {
	Align int

	mu    sync.Mutex
	pools map[int]*sync.Pool
}

// NewAllocator creates an allocator with the given stride alignment.
// align <= 1 produces tightly packed rows.
func NewAllocator(align int) *Allocator {
	if align < 1 {
		align = 1
	}
	return &Allocator{
		Align: align,
		pools: make(map[int]*sync.Pool),
	}
}

// Stride returns the aligned stride for a plane of the given format and width
func (a *Allocator) Stride(format Format, plane, width int) int {
	row := format.RowBytes(plane, width)
	align := a.Align
	if align <= 1 {
		return row
	}
	return (row + align - 1) / align * align
}

// Allocate returns a frame with zeroed plane storage for the format
func (a *Allocator) Allocate(width, height int, format Format) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", width, height)
	}
	if !format.Valid() {
		return nil, fmt.Errorf("cannot allocate frame: unknown pixel format %s", format)
	}

	f := &Frame{
		Width:     width,
		Height:    height,
		Format:    format,
		Planes:    make([]Plane, format.Planes()),
		allocated: true,
	}
	for i := range f.Planes {
		stride := a.Stride(format, i, width)
		f.Planes[i] = Plane{
			Data:   a.get(stride * format.PlaneHeight(i, height)),
			Stride: stride,
		}
	}
	return f, nil
}

// Release returns all plane memory of f to the allocator. The frame must not
// be used afterwards.
func (a *Allocator) Release(f *Frame) error {
	if f == nil || !f.allocated {
		format := FormatNone
		if f != nil {
			format = f.Format
		}
		return &DoubleReleaseError{Format: format, NeverAllocated: true}
	}
	if f.released {
		return &DoubleReleaseError{Format: f.Format}
	}

	for i := range f.Planes {
		a.put(f.Planes[i].Data)
		f.Planes[i].Data = nil
	}
	f.released = true
	return nil
}

func (a *Allocator) pool(size int) *sync.Pool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pools == nil {
		a.pools = make(map[int]*sync.Pool)
	}
	p, ok := a.pools[size]
	if !ok {
		p = &sync.Pool{
			New: func() any {
				buf := make([]byte, size)
				return &buf
			},
		}
		a.pools[size] = p
	}
	return p
}

func (a *Allocator) get(size int) []byte {
	buf := *(a.pool(size).Get().(*[]byte))
	clear(buf)
	return buf
}

func (a *Allocator) put(buf []byte) {
	if buf == nil {
		return
	}
	a.pool(len(buf)).Put(&buf)
}
