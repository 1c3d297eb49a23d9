// Package libav implements the encoder backend on top of libavcodec.
package libav

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"unsafe"

	ffmpeg "github.com/csnewman/ffmpeg-go"
	"github.com/sirupsen/logrus"

	"github.com/linuxmatters/framecast/internal/encoder"
	"github.com/linuxmatters/framecast/internal/frame"
)

// AV_PKT_FLAG_KEY
const pktFlagKey = 0x0001

// Register installs the libavcodec backend for every codec it can drive
func Register(reg *encoder.Registry, log logrus.FieldLogger) {
	for _, id := range []encoder.CodecID{encoder.H264, encoder.HEVC} {
		reg.Register(id, func() encoder.Codec { return New(log) })
	}
}

// Codec wraps one libavcodec encoder context
type Codec struct {
	log    logrus.FieldLogger
	params encoder.Params
	name   string

	ctx   *ffmpeg.AVCodecContext
	frame *ffmpeg.AVFrame
	pkt   *ffmpeg.AVPacket
}

// New creates an unopened backend
func New(log logrus.FieldLogger) *Codec {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Codec{log: log}
}

// Name returns the encoder in use, e.g. "h264_nvenc"
func (c *Codec) Name() string {
	return c.name
}

func (c *Codec) Open(p encoder.Params) error {
	pixFmt, ok := pixelFormat(p.Format)
	if !ok {
		return fmt.Errorf("pixel format %s is not supported by libavcodec encoders", p.Format)
	}

	codec, name, err := c.findEncoder(p)
	if err != nil {
		return err
	}

	c.ctx = ffmpeg.AVCodecAllocContext3(codec)
	if c.ctx == nil {
		return errors.New("failed to allocate codec context")
	}

	num, den := rational(p.FrameRate)
	c.ctx.SetWidth(p.Width)
	c.ctx.SetHeight(p.Height)
	c.ctx.SetPixFmt(pixFmt)
	c.ctx.SetTimeBase(ffmpeg.AVMakeQ(den, num))
	c.ctx.SetFramerate(ffmpeg.AVMakeQ(num, den))
	if p.GOPSize > 0 {
		c.ctx.SetGopSize(p.GOPSize)
	}
	c.ctx.SetMaxBFrames(p.MaxBFrames)
	if p.BitRate > 0 {
		c.ctx.SetBitRate(p.BitRate)
	}

	ret, err := ffmpeg.AVCodecOpen2(c.ctx, codec, nil)
	if err != nil {
		return fmt.Errorf("failed to open codec %s: %w", name, err)
	}
	if ret < 0 {
		return fmt.Errorf("failed to open codec %s: %d", name, ret)
	}

	c.frame = ffmpeg.AVFrameAlloc()
	if c.frame == nil {
		return errors.New("failed to allocate frame")
	}
	c.frame.SetWidth(p.Width)
	c.frame.SetHeight(p.Height)
	c.frame.SetFormat(int(pixFmt))

	ret, err = ffmpeg.AVFrameGetBuffer(c.frame, 0)
	if err != nil {
		return fmt.Errorf("failed to allocate frame buffer: %w", err)
	}
	if ret < 0 {
		return fmt.Errorf("failed to allocate frame buffer: %d", ret)
	}

	c.pkt = ffmpeg.AVPacketAlloc()
	if c.pkt == nil {
		return errors.New("failed to allocate packet")
	}

	c.params = p
	c.name = name
	c.log.WithFields(logrus.Fields{
		"encoder": name,
		"size":    fmt.Sprintf("%dx%d", p.Width, p.Height),
		"format":  p.Format,
		"fps":     p.FrameRate,
	}).Info("libavcodec encoder ready")
	return nil
}

// findEncoder resolves the implementation: an explicit encoder name wins,
// then hardware selection, then the default software encoder for the codec.
func (c *Codec) findEncoder(p encoder.Params) (*ffmpeg.AVCodec, string, error) {
	if p.EncoderName != "" {
		codec := findEncoderByName(p.EncoderName)
		if codec == nil {
			return nil, "", fmt.Errorf("%w: %s", encoder.ErrCodecNotFound, p.EncoderName)
		}
		return codec, p.EncoderName, nil
	}

	accel, err := ParseHWAccel(p.HWAccel)
	if err != nil {
		return nil, "", err
	}
	if hw := SelectBestEncoder(p.Codec, accel); hw != nil {
		if codec := findEncoderByName(hw.Name); codec != nil {
			c.log.WithField("encoder", hw.Name).Debugf("using %s", hw.Description)
			return codec, hw.Name, nil
		}
	} else if accel != HWAccelNone && accel != HWAccelAuto {
		c.log.WithField("hwaccel", accel).Warn("requested hardware encoder not available, using software")
	}

	id, ok := codecID(p.Codec)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", encoder.ErrCodecNotFound, p.Codec)
	}
	codec := ffmpeg.AVCodecFindEncoder(id)
	if codec == nil {
		return nil, "", fmt.Errorf("%w: no %s encoder in this libavcodec build", encoder.ErrCodecNotFound, p.Codec)
	}
	return codec, fmt.Sprintf("%s (software)", p.Codec), nil
}

func (c *Codec) Send(f *frame.Frame, pts int64) ([]encoder.Packet, error) {
	ret, err := ffmpeg.AVFrameMakeWritable(c.frame)
	if err != nil {
		return nil, fmt.Errorf("failed to make frame writable: %w", err)
	}
	if ret < 0 {
		return nil, fmt.Errorf("failed to make frame writable: %d", ret)
	}

	c.copyPlanes(f)
	c.frame.SetPts(pts)

	ret, err = ffmpeg.AVCodecSendFrame(c.ctx, c.frame)
	if err != nil {
		return nil, fmt.Errorf("failed to send frame to encoder: %w", err)
	}
	if ret < 0 {
		return nil, fmt.Errorf("failed to send frame to encoder: %d", ret)
	}
	return c.receive()
}

// copyPlanes copies each plane row by row honouring both line sizes
func (c *Codec) copyPlanes(f *frame.Frame) {
	for i := range f.Planes {
		linesize := int(c.frame.Linesize().Get(uintptr(i)))
		rows := f.Format.PlaneHeight(i, f.Height)
		rowBytes := f.Format.RowBytes(i, f.Width)

		base := unsafe.Pointer(c.frame.Data().Get(uintptr(i)))
		dst := unsafe.Slice((*byte)(base), linesize*rows)
		for y := 0; y < rows; y++ {
			copy(dst[y*linesize:y*linesize+rowBytes], f.Row(i, y))
		}
	}
}

func (c *Codec) Drain() ([]encoder.Packet, error) {
	ret, err := ffmpeg.AVCodecSendFrame(c.ctx, nil)
	if err != nil && !errors.Is(err, ffmpeg.AVErrorEOF) {
		return nil, fmt.Errorf("failed to flush encoder: %w", err)
	}
	if err == nil && ret < 0 {
		return nil, fmt.Errorf("failed to flush encoder: %d", ret)
	}
	return c.receive()
}

// receive pulls packets until the encoder wants more input or is drained
func (c *Codec) receive() ([]encoder.Packet, error) {
	var packets []encoder.Packet
	for {
		ret, err := ffmpeg.AVCodecReceivePacket(c.ctx, c.pkt)
		if errors.Is(err, ffmpeg.EAgain) || errors.Is(err, ffmpeg.AVErrorEOF) {
			return packets, nil
		}
		if err != nil {
			return packets, fmt.Errorf("failed to receive packet: %w", err)
		}
		if ret < 0 {
			return packets, fmt.Errorf("failed to receive packet: %d", ret)
		}

		size := c.pkt.Size()
		payload := bytes.Clone(unsafe.Slice((*byte)(unsafe.Pointer(c.pkt.Data())), size))
		packets = append(packets, encoder.Packet{
			Payload:  payload,
			Size:     size,
			PTS:      c.pkt.Pts(),
			DTS:      c.pkt.Dts(),
			Keyframe: c.pkt.Flags()&pktFlagKey != 0,
		})
		ffmpeg.AVPacketUnref(c.pkt)
	}
}

// Close frees libav resources. Safe to call more than once.
func (c *Codec) Close() error {
	if c.pkt != nil {
		ffmpeg.AVPacketFree(&c.pkt)
	}
	if c.frame != nil {
		ffmpeg.AVFrameFree(&c.frame)
	}
	if c.ctx != nil {
		ffmpeg.AVCodecFreeContext(&c.ctx)
	}
	return nil
}

func findEncoderByName(name string) *ffmpeg.AVCodec {
	cName := ffmpeg.ToCStr(name)
	defer cName.Free()
	return ffmpeg.AVCodecFindEncoderByName(cName)
}

func codecID(id encoder.CodecID) (ffmpeg.AVCodecID, bool) {
	switch id {
	case encoder.H264:
		return ffmpeg.AVCodecIdH264, true
	case encoder.HEVC:
		return ffmpeg.AVCodecIdHevc, true
	}
	return 0, false
}

func pixelFormat(f frame.Format) (ffmpeg.AVPixelFormat, bool) {
	switch f {
	case frame.FormatYUV420P:
		return ffmpeg.AVPixFmtYuv420P, true
	case frame.FormatNV12:
		return ffmpeg.AVPixFmtNv12, true
	}
	return 0, false
}

// rational turns a frame rate into num/den. NTSC rates map to x/1001.
func rational(fps float64) (int, int) {
	if fps == math.Trunc(fps) {
		return int(fps), 1
	}
	if math.Abs(fps*1001-math.Round(fps*1001/1000)*1000) < 1 {
		return int(math.Round(fps*1001/1000)) * 1000, 1001
	}
	return int(math.Round(fps * 1000)), 1000
}
