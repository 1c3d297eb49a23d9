package convert

import "github.com/linuxmatters/framecast/internal/frame"

// BT.601 full-range coefficients, scaled by 65536
const (
	yR  = 19595
	yG  = 38470
	yB  = 7471
	cbR = -11056
	cbG = -21712
	cbB = 32768
	crR = 32768
	crG = -27440
	crB = -5328
)

// layout describes where the colour channels live inside a packed pixel.
// alpha is -1 when the format has no alpha channel.
type layout struct {
	bpp     int
	r, g, b int
	alpha   int
}

func layoutOf(f frame.Format) layout {
	switch f {
	case frame.FormatBGR24:
		return layout{bpp: 3, r: 2, g: 1, b: 0, alpha: -1}
	case frame.FormatRGB24:
		return layout{bpp: 3, r: 0, g: 1, b: 2, alpha: -1}
	case frame.FormatRGBA:
		return layout{bpp: 4, r: 0, g: 1, b: 2, alpha: 3}
	case frame.FormatBGRA:
		return layout{bpp: 4, r: 2, g: 1, b: 0, alpha: 3}
	default: // Gray8
		return layout{bpp: 1, alpha: -1}
	}
}

type packedView struct {
	data   []byte
	stride int
	layout layout
}

func (v packedView) rgb(x, y int) (r, g, b int32) {
	i := y*v.stride + x*v.layout.bpp
	return int32(v.data[i+v.layout.r]), int32(v.data[i+v.layout.g]), int32(v.data[i+v.layout.b])
}

func luma(r, g, b int32) uint8 {
	return uint8((yR*r + yG*g + yB*b + 1<<15) >> 16)
}

func chroma(r, g, b int32) (uint8, uint8) {
	cb := cbR*r + cbG*g + cbB*b + 257<<15
	if uint32(cb)&0xff000000 == 0 {
		cb >>= 16
	} else {
		cb = ^(cb >> 31)
	}

	cr := crR*r + crG*g + crB*b + 257<<15
	if uint32(cr)&0xff000000 == 0 {
		cr >>= 16
	} else {
		cr = ^(cr >> 31)
	}
	return uint8(cb), uint8(cr)
}

// toYUV420 writes chroma rows [start, end) and the luma rows they cover.
// Chroma is taken from the average of each 2x2 block.
func toYUV420(in packedView, dst *frame.Frame, start, end int) {
	width, height := dst.Width, dst.Height
	yp := dst.Planes[0]
	nv12 := dst.Format == frame.FormatNV12

	for cy := start; cy < end; cy++ {
		for y := cy * 2; y < cy*2+2 && y < height; y++ {
			row := yp.Data[y*yp.Stride:]
			for x := 0; x < width; x++ {
				row[x] = luma(in.rgb(x, y))
			}
		}

		for cx := 0; cx < (width+1)/2; cx++ {
			var sr, sg, sb, n int32
			for y := cy * 2; y < cy*2+2 && y < height; y++ {
				for x := cx * 2; x < cx*2+2 && x < width; x++ {
					r, g, b := in.rgb(x, y)
					sr += r
					sg += g
					sb += b
					n++
				}
			}
			cb, cr := chroma((sr+n/2)/n, (sg+n/2)/n, (sb+n/2)/n)

			if nv12 {
				uv := dst.Planes[1]
				uv.Data[cy*uv.Stride+cx*2] = cb
				uv.Data[cy*uv.Stride+cx*2+1] = cr
			} else {
				u, v := dst.Planes[1], dst.Planes[2]
				u.Data[cy*u.Stride+cx] = cb
				v.Data[cy*v.Stride+cx] = cr
			}
		}
	}
}

// toPacked writes rows [start, end) of a packed RGB or grey destination
func toPacked(in packedView, dst *frame.Frame, start, end int) {
	out := layoutOf(dst.Format)
	gray := dst.Format == frame.FormatGray8
	p := dst.Planes[0]

	for y := start; y < end; y++ {
		row := p.Data[y*p.Stride:]
		for x := 0; x < dst.Width; x++ {
			r, g, b := in.rgb(x, y)
			if gray {
				row[x] = luma(r, g, b)
				continue
			}
			i := x * out.bpp
			row[i+out.r] = uint8(r)
			row[i+out.g] = uint8(g)
			row[i+out.b] = uint8(b)
			if out.alpha >= 0 {
				row[i+out.alpha] = 0xFF
			}
		}
	}
}
