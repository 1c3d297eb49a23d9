package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/framecast/internal/frame"
)

func TestDownsampleLuma_YUV(t *testing.T) {
	alloc := frame.NewAllocator(frame.DefaultAlign)
	f, err := alloc.Allocate(8, 4, frame.FormatYUV420P)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	defer alloc.Release(f)

	// Left half dark, right half bright
	for y := 0; y < f.Height; y++ {
		row := f.Row(0, y)
		for x := range row {
			if x >= 4 {
				row[x] = 200
			} else {
				row[x] = 20
			}
		}
	}

	grid := DownsampleLuma(f, PreviewConfig{Width: 2, Height: 2})
	if len(grid) != 2 || len(grid[0]) != 2 {
		t.Fatalf("grid is %dx%d, want 2x2", len(grid[0]), len(grid))
	}
	for _, row := range grid {
		if row[0] != 20 || row[1] != 200 {
			t.Errorf("row = %v, want [20 200]", row)
		}
	}
}

func TestDownsampleLuma_PackedRGB(t *testing.T) {
	alloc := frame.NewAllocator(1)
	f, err := alloc.Allocate(2, 2, frame.FormatRGBA)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	defer alloc.Release(f)

	for y := 0; y < 2; y++ {
		copy(f.Row(0, y), []byte{30, 60, 90, 255, 30, 60, 90, 255})
	}

	// Alpha is ignored
	grid := DownsampleLuma(f, PreviewConfig{Width: 4, Height: 4})
	if len(grid) != 2 || len(grid[0]) != 2 {
		t.Fatalf("grid should be clamped to the frame size, got %dx%d", len(grid[0]), len(grid))
	}
	if grid[1][1] != 60 {
		t.Errorf("cell = %d, want 60", grid[1][1])
	}
}

func TestDownsampleLuma_Nil(t *testing.T) {
	if grid := DownsampleLuma(nil, DefaultPreviewConfig()); grid != nil {
		t.Errorf("expected nil grid, got %v", grid)
	}
}

func TestRenderPreview(t *testing.T) {
	out := RenderPreview([][]uint8{{0, 255}})
	if !strings.Contains(out, "\x1b[48;2;255;255;255m") {
		t.Errorf("missing white cell: %q", out)
	}
	if RenderPreview(nil) != "" {
		t.Error("empty grid should render nothing")
	}
}

func TestModel_ProgressAndComplete(t *testing.T) {
	m := NewModel("640x360 bgr24 → 640x360 yuv420p", true)

	if !strings.Contains(m.View(), "Starting encoder") {
		t.Errorf("initial view should show startup:\n%s", m.View())
	}

	m.Update(Progress{Frame: 5, Total: 10, Packets: 5, Bytes: 4096, Elapsed: time.Second, FrameRate: 25})
	view := m.View()
	for _, want := range []string{"50%", "Frame 5 of 10", "4.0 KB"} {
		if !strings.Contains(view, want) {
			t.Errorf("progress view missing %q:\n%s", want, view)
		}
	}

	if m.CompletionSummary() != "" {
		t.Error("summary should be empty before completion")
	}

	_, cmd := m.Update(Complete{OutputFile: "out.h264", Frames: 10, Requested: 10, Packets: 10, TotalTime: time.Second, FrameRate: 25})
	if cmd == nil {
		t.Error("completion should schedule a quit")
	}
	if !strings.Contains(m.CompletionSummary(), "out.h264") {
		t.Errorf("summary missing output:\n%s", m.CompletionSummary())
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Error("a key press after completion should quit")
	}
}

func TestModel_CompleteWithError(t *testing.T) {
	m := NewModel("", true)
	m.Update(Complete{OutputFile: "out.h264", Err: errors.New("source exhausted")})
	if !strings.Contains(m.View(), "source exhausted") {
		t.Errorf("failure view missing error:\n%s", m.View())
	}
}
