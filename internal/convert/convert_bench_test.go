package convert

// =============================================================================
// BGR24→YUV Colourspace Conversion Benchmark
// =============================================================================
//
// Compares the row-parallel converter against a single-threaded reference
// built on image/color.RGBToYCbCr, and measures the cost of resampling with
// each scaling algorithm.
//
// Run with: go test -bench=. -benchmem ./internal/convert/
//
// =============================================================================

import (
	"image/color"
	"testing"

	"github.com/linuxmatters/framecast/internal/frame"
)

const (
	benchWidth  = 1280
	benchHeight = 720
)

// benchSource returns a BGR24 frame filled with a gradient so the chroma
// path sees varied input
func benchSource(b *testing.B, alloc *frame.Allocator, w, h int) *frame.Frame {
	b.Helper()
	f, err := alloc.Allocate(w, h, frame.FormatBGR24)
	if err != nil {
		b.Fatalf("Allocate() error = %v", err)
	}
	for y := 0; y < h; y++ {
		row := f.Row(0, y)
		for x := 0; x < w; x++ {
			row[x*3] = uint8(x)
			row[x*3+1] = uint8(y)
			row[x*3+2] = uint8(x + y)
		}
	}
	return f
}

// convertSerial is a straightforward single-threaded BGR24→YUV420P
// conversion using the standard library, kept as the comparison baseline
func convertSerial(src, dst *frame.Frame) {
	for y := 0; y < src.Height; y++ {
		in := src.Row(0, y)
		luma := dst.Row(0, y)
		for x := 0; x < src.Width; x++ {
			yy, _, _ := color.RGBToYCbCr(in[x*3+2], in[x*3+1], in[x*3])
			luma[x] = yy
		}
	}
	for cy := 0; cy < dst.Format.PlaneHeight(1, dst.Height); cy++ {
		u := dst.Row(1, cy)
		v := dst.Row(2, cy)
		top := src.Row(0, cy*2)
		for cx := range u {
			_, cb, cr := color.RGBToYCbCr(top[cx*6+2], top[cx*6+1], top[cx*6])
			u[cx] = cb
			v[cx] = cr
		}
	}
}

func BenchmarkConvert_Parallel(b *testing.B) {
	alloc := frame.NewAllocator(frame.DefaultAlign)
	src := benchSource(b, alloc, benchWidth, benchHeight)
	dst, _ := alloc.Allocate(benchWidth, benchHeight, frame.FormatYUV420P)

	ctx, err := NewContext(Params{
		SrcWidth: benchWidth, SrcHeight: benchHeight,
		SrcFormat: frame.FormatBGR24, DstFormat: frame.FormatYUV420P,
	})
	if err != nil {
		b.Fatalf("NewContext() error = %v", err)
	}

	b.SetBytes(int64(frame.FormatBGR24.ImageSize(benchWidth, benchHeight)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := ctx.Convert(src, dst); err != nil {
			b.Fatalf("Convert() error = %v", err)
		}
	}
}

func BenchmarkConvert_Serial(b *testing.B) {
	alloc := frame.NewAllocator(frame.DefaultAlign)
	src := benchSource(b, alloc, benchWidth, benchHeight)
	dst, _ := alloc.Allocate(benchWidth, benchHeight, frame.FormatYUV420P)

	b.SetBytes(int64(frame.FormatBGR24.ImageSize(benchWidth, benchHeight)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		convertSerial(src, dst)
	}
}

func BenchmarkConvert_NV12(b *testing.B) {
	alloc := frame.NewAllocator(frame.DefaultAlign)
	src := benchSource(b, alloc, benchWidth, benchHeight)
	dst, _ := alloc.Allocate(benchWidth, benchHeight, frame.FormatNV12)

	ctx, err := NewContext(Params{
		SrcWidth: benchWidth, SrcHeight: benchHeight,
		SrcFormat: frame.FormatBGR24, DstFormat: frame.FormatNV12,
	})
	if err != nil {
		b.Fatalf("NewContext() error = %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := ctx.Convert(src, dst); err != nil {
			b.Fatalf("Convert() error = %v", err)
		}
	}
}

// BenchmarkConvert_Downscale measures 1080p→720p for every algorithm
func BenchmarkConvert_Downscale(b *testing.B) {
	for _, algo := range []Algorithm{Nearest, ApproxBilinear, Bilinear, Bicubic} {
		b.Run(algo.String(), func(b *testing.B) {
			alloc := frame.NewAllocator(frame.DefaultAlign)
			src := benchSource(b, alloc, 1920, 1080)
			dst, _ := alloc.Allocate(benchWidth, benchHeight, frame.FormatYUV420P)

			ctx, err := NewContext(Params{
				SrcWidth: 1920, SrcHeight: 1080,
				DstWidth: benchWidth, DstHeight: benchHeight,
				SrcFormat: frame.FormatBGR24, DstFormat: frame.FormatYUV420P,
				Algorithm: algo,
			})
			if err != nil {
				b.Fatalf("NewContext() error = %v", err)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := ctx.Convert(src, dst); err != nil {
					b.Fatalf("Convert() error = %v", err)
				}
			}
		})
	}
}
