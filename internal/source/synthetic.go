package source

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/linuxmatters/framecast/internal/frame"
)

// SyntheticPrefix selects the in-memory generator in Open
const SyntheticPrefix = "synthetic:"

const (
	syntheticFrames    = 30
	syntheticFrameRate = 30
	// Row padding exercises stride handling downstream
	syntheticPadding = 16
)

var colourBars = []color.RGBA{
	{0xC0, 0xC0, 0xC0, 0xFF},
	{0xC0, 0xC0, 0x00, 0xFF},
	{0x00, 0xC0, 0xC0, 0xFF},
	{0x00, 0xC0, 0x00, 0xFF},
	{0xC0, 0x00, 0xC0, 0xFF},
	{0xC0, 0x00, 0x00, 0xFF},
	{0x00, 0x00, 0xC0, 0xFF},
	{0x10, 0x10, 0x10, 0xFF},
}

// SyntheticConfig describes a generated input
type SyntheticConfig struct {
	Width     int
	Height    int
	Frames    int
	FrameRate float64
	Pattern   bool       // moving colour bars with a frame counter
	Colour    color.RGBA // solid fill when Pattern is false
}

// ParseSynthetic parses "synthetic:WxH[:FRAMES[:RRGGBB|pattern]]"
func ParseSynthetic(path string) (SyntheticConfig, error) {
	args, ok := strings.CutPrefix(path, SyntheticPrefix)
	if !ok {
		return SyntheticConfig{}, fmt.Errorf("not a synthetic input: %q", path)
	}

	cfg := SyntheticConfig{
		Frames:    syntheticFrames,
		FrameRate: syntheticFrameRate,
		Pattern:   true,
	}

	parts := strings.Split(args, ":")
	if len(parts) > 3 {
		return SyntheticConfig{}, fmt.Errorf("too many fields in %q", path)
	}

	w, h, err := ParseSize(parts[0])
	if err != nil {
		return SyntheticConfig{}, err
	}
	cfg.Width, cfg.Height = w, h

	if len(parts) > 1 {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 0 {
			return SyntheticConfig{}, fmt.Errorf("invalid frame count: %q", parts[1])
		}
		cfg.Frames = n
	}

	if len(parts) > 2 && parts[2] != "pattern" {
		c, err := parseColour(parts[2])
		if err != nil {
			return SyntheticConfig{}, err
		}
		cfg.Pattern = false
		cfg.Colour = c
	}
	return cfg, nil
}

// ParseSize parses "WIDTHxHEIGHT"
func ParseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q: expected WIDTHxHEIGHT", s)
	}
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q: expected WIDTHxHEIGHT", s)
	}
	return w, h, nil
}

func parseColour(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: expected RRGGBB", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}

// Synthetic generates BGR24 frames in memory
type Synthetic struct {
	cfg    SyntheticConfig
	stride int
	buf    []byte
	canvas *image.RGBA
	index  int
}

// NewSynthetic creates a generator for cfg
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	s := &Synthetic{
		cfg:    cfg,
		stride: cfg.Width*3 + syntheticPadding,
	}
	s.buf = make([]byte, s.stride*cfg.Height)
	for i := range s.buf {
		s.buf[i] = 0xEE
	}

	if cfg.Pattern {
		s.canvas = image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	} else {
		s.fill(cfg.Colour)
	}
	return s
}

func (s *Synthetic) FrameCount() int { return s.cfg.Frames }

func (s *Synthetic) Dimensions() (int, int) { return s.cfg.Width, s.cfg.Height }

func (s *Synthetic) FrameRate() float64 { return s.cfg.FrameRate }

func (s *Synthetic) Format() frame.Format { return frame.FormatBGR24 }

func (s *Synthetic) Next() (*RawFrame, error) {
	if s.index >= s.cfg.Frames {
		return nil, io.EOF
	}
	if s.cfg.Pattern {
		s.render(s.index)
	}

	f := &RawFrame{Index: s.index, Data: s.buf, Stride: s.stride}
	s.index++
	return f, nil
}

func (s *Synthetic) Close() error {
	s.index = s.cfg.Frames
	return nil
}

func (s *Synthetic) fill(c color.RGBA) {
	for y := 0; y < s.cfg.Height; y++ {
		row := s.buf[y*s.stride:]
		for x := 0; x < s.cfg.Width; x++ {
			row[x*3] = c.B
			row[x*3+1] = c.G
			row[x*3+2] = c.R
		}
	}
}

// render draws colour bars scrolled by the frame index with the frame number
// on top, then packs the canvas into the BGR buffer.
func (s *Synthetic) render(index int) {
	w, h := s.cfg.Width, s.cfg.Height
	barWidth := (w + len(colourBars) - 1) / len(colourBars)

	for y := 0; y < h; y++ {
		row := s.canvas.Pix[y*s.canvas.Stride:]
		for x := 0; x < w; x++ {
			c := colourBars[((x+index*2)/barWidth)%len(colourBars)]
			row[x*4] = c.R
			row[x*4+1] = c.G
			row[x*4+2] = c.B
			row[x*4+3] = c.A
		}
	}

	d := &font.Drawer{
		Dst:  s.canvas,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(2, basicfont.Face7x13.Ascent+2),
	}
	d.DrawString(fmt.Sprintf("%d", index))

	for y := 0; y < h; y++ {
		src := s.canvas.Pix[y*s.canvas.Stride:]
		dst := s.buf[y*s.stride:]
		for x := 0; x < w; x++ {
			dst[x*3] = src[x*4+2]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4]
		}
	}
}
