package frame

import (
	"fmt"
	"strings"
)

// Format identifies a pixel layout. The set is fixed at build time.
type Format int

const (
	FormatNone Format = iota
	FormatBGR24
	FormatRGB24
	FormatRGBA
	FormatBGRA
	FormatGray8
	FormatYUV420P
	FormatNV12
)

var formatNames = map[Format]string{
	FormatBGR24:   "bgr24",
	FormatRGB24:   "rgb24",
	FormatRGBA:    "rgba",
	FormatBGRA:    "bgra",
	FormatGray8:   "gray",
	FormatYUV420P: "yuv420p",
	FormatNV12:    "nv12",
}

// String returns the FFmpeg-style name of the format
func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParseFormat maps an FFmpeg-style pixel format name to a Format
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return FormatNone, fmt.Errorf("unknown pixel format: %q", s)
}

// Valid reports whether f is one of the known formats
func (f Format) Valid() bool {
	_, ok := formatNames[f]
	return ok
}

// Planes returns the number of planes the format stores
func (f Format) Planes() int {
	switch f {
	case FormatYUV420P:
		return 3
	case FormatNV12:
		return 2
	case FormatNone:
		return 0
	default:
		return 1
	}
}

// Packed reports whether the format stores all components interleaved in a
// single plane.
func (f Format) Packed() bool {
	return f.Valid() && f.Planes() == 1
}

// RGB reports whether the format is one of the packed RGB family
func (f Format) RGB() bool {
	switch f {
	case FormatBGR24, FormatRGB24, FormatRGBA, FormatBGRA:
		return true
	}
	return false
}

// BytesPerPixel returns the bytes per horizontal sample of the given plane.
// NV12's chroma plane holds interleaved U/V pairs, so one chroma sample is
// two bytes wide.
func (f Format) BytesPerPixel(plane int) int {
	switch f {
	case FormatBGR24, FormatRGB24:
		return 3
	case FormatRGBA, FormatBGRA:
		return 4
	case FormatGray8, FormatYUV420P:
		return 1
	case FormatNV12:
		if plane == 0 {
			return 1
		}
		return 2
	}
	return 0
}

// PlaneWidth returns the number of samples per row for a plane
func (f Format) PlaneWidth(plane, width int) int {
	if plane == 0 {
		return width
	}
	// 4:2:0 chroma, rounded up for odd widths
	return (width + 1) / 2
}

// PlaneHeight returns the number of rows of a plane
func (f Format) PlaneHeight(plane, height int) int {
	if plane == 0 {
		return height
	}
	return (height + 1) / 2
}

// RowBytes returns the minimum stride of a plane: width in samples times
// bytes per sample.
func (f Format) RowBytes(plane, width int) int {
	return f.PlaneWidth(plane, width) * f.BytesPerPixel(plane)
}

// ImageSize returns the byte count of a tightly packed image in this format
func (f Format) ImageSize(width, height int) int {
	total := 0
	for p := 0; p < f.Planes(); p++ {
		total += f.RowBytes(p, width) * f.PlaneHeight(p, height)
	}
	return total
}
