package ui

import (
	"fmt"
	"strings"

	"github.com/linuxmatters/framecast/internal/frame"
)

// PreviewConfig holds configuration for the video preview
type PreviewConfig struct {
	Width  int // Width in terminal cells
	Height int // Height in terminal cells
}

// DefaultPreviewConfig returns a sensible default preview size
// Using 64x18, close to 16:9 once cell aspect is accounted for
func DefaultPreviewConfig() PreviewConfig {
	return PreviewConfig{
		Width:  64,
		Height: 18,
	}
}

// DownsampleLuma reduces a frame to a grid of brightness values. YUV and
// gray frames use the luma plane directly, packed RGB frames average the
// colour channels. Each cell averages the source region it covers.
func DownsampleLuma(f *frame.Frame, config PreviewConfig) [][]uint8 {
	if f == nil || f.Width == 0 || f.Height == 0 || config.Width <= 0 || config.Height <= 0 {
		return nil
	}

	cols := min(config.Width, f.Width)
	rows := min(config.Height, f.Height)

	bpp := 1
	channels := 1
	if f.Format.RGB() {
		bpp = f.Format.BytesPerPixel(0)
		channels = 3
	}

	grid := make([][]uint8, rows)
	for row := 0; row < rows; row++ {
		grid[row] = make([]uint8, cols)
		y0 := row * f.Height / rows
		y1 := (row + 1) * f.Height / rows

		for col := 0; col < cols; col++ {
			x0 := col * f.Width / cols
			x1 := (col + 1) * f.Width / cols

			var sum, count uint32
			for y := y0; y < y1; y++ {
				line := f.Row(0, y)
				for x := x0; x < x1; x++ {
					px := line[x*bpp : x*bpp+channels]
					for _, v := range px {
						sum += uint32(v)
					}
					count += uint32(channels)
				}
			}
			if count > 0 {
				grid[row][col] = uint8(sum / count)
			}
		}
	}
	return grid
}

// RenderPreview converts a brightness grid to a string using ANSI 24-bit
// background colours, one space per cell
func RenderPreview(preview [][]uint8) string {
	if len(preview) == 0 {
		return ""
	}

	var b strings.Builder
	border := strings.Repeat("─", len(preview[0]))

	b.WriteString("  Preview:\n")
	b.WriteString("  ┌" + border + "┐\n")
	for _, row := range preview {
		b.WriteString("  │")
		for _, v := range row {
			fmt.Fprintf(&b, "\x1b[48;2;%d;%d;%dm \x1b[0m", v, v, v)
		}
		b.WriteString("│\n")
	}
	b.WriteString("  └" + border + "┘\n")

	return b.String()
}
