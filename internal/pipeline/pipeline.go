// Package pipeline drives frames from a source through conversion and
// encoding into an elementary stream.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/linuxmatters/framecast/internal/convert"
	"github.com/linuxmatters/framecast/internal/encoder"
	"github.com/linuxmatters/framecast/internal/frame"
	"github.com/linuxmatters/framecast/internal/source"
	"github.com/linuxmatters/framecast/internal/stream"
)

// DefaultFrameRate is used when the source does not report one
const DefaultFrameRate = 25.0

// Config fixes the output of one transcode session
type Config struct {
	Codec       encoder.CodecID
	EncoderName string
	HWAccel     string
	DstFormat   frame.Format
	DstWidth    int // 0 keeps the source width
	DstHeight   int // 0 keeps the source height
	Algorithm   convert.Algorithm
	GOPSize     int
	MaxBFrames  int
	BitRate     int64
	Align       int // plane stride alignment, 0 uses frame.DefaultAlign

	// Prefetch > 0 converts up to that many frames ahead on a second goroutine
	Prefetch int
	// StrictWrites makes a short write fatal instead of a warning
	StrictWrites bool
	// AbortOnEncodeFailure makes a rejected frame fatal
	AbortOnEncodeFailure bool
}

// Encoder is the compression session driven by the pipeline
type Encoder interface {
	Open(p encoder.Params) error
	Submit(f *frame.Frame, pts int64) ([]encoder.Packet, error)
	Flush() ([]encoder.Packet, error)
	Close() error
}

// Writer receives encoded packets
type Writer interface {
	Write(p encoder.Packet) error
	Finalize() error
}

// Deps are the collaborators of a pipeline
type Deps struct {
	Source    source.Source
	Encoder   Encoder
	Writer    Writer
	Allocator *frame.Allocator   // optional
	Logger    logrus.FieldLogger // optional
	Progress  func(Progress)     // optional, called after every frame
}

// Progress is reported after every frame
type Progress struct {
	Frame   int // frames processed so far
	Total   int
	Packets int
	Bytes   int64
	Elapsed time.Duration

	// Converted is the frame just encoded, only valid until the callback returns
	Converted *frame.Frame
}

// Stats summarises a run
type Stats struct {
	Requested      int
	SourceFrames   int // -1 if the source did not report a count
	Clamped        bool
	Frames         int // frames pulled and submitted
	EncodeFailures int
	Packets        int
	Bytes          int64
	ShortWrites    int
	Duration       time.Duration
}

// Pipeline is a single transcode session
type Pipeline struct {
	cfg   Config
	deps  Deps
	log   logrus.FieldLogger
	alloc *frame.Allocator

	conv      *convert.Context
	srcW      int
	srcH      int
	srcFormat frame.Format

	stats Stats
	start time.Time
}

// New creates a pipeline. Nothing is opened until Run.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Source == nil || deps.Encoder == nil || deps.Writer == nil {
		return nil, errors.New("pipeline needs a source, an encoder and a writer")
	}
	if !cfg.DstFormat.Valid() {
		return nil, fmt.Errorf("invalid destination format: %s", cfg.DstFormat)
	}
	if cfg.Prefetch < 0 {
		return nil, fmt.Errorf("invalid prefetch depth: %d", cfg.Prefetch)
	}

	p := &Pipeline{cfg: cfg, deps: deps}

	p.log = deps.Logger
	if p.log == nil {
		p.log = logrus.StandardLogger()
	}
	p.alloc = deps.Allocator
	if p.alloc == nil {
		align := cfg.Align
		if align == 0 {
			align = frame.DefaultAlign
		}
		p.alloc = frame.NewAllocator(align)
	}
	return p, nil
}

// Run encodes framesToEncode frames. The encoder is flushed and the stream
// finalized on every path once the encoder has been opened, so a failed or
// cancelled run still leaves a terminated stream behind.
func (p *Pipeline) Run(ctx context.Context, framesToEncode int) (Stats, error) {
	p.start = time.Now()
	if framesToEncode < 0 {
		return p.stats, fmt.Errorf("invalid frame count: %d", framesToEncode)
	}

	src := p.deps.Source
	p.stats.Requested = framesToEncode
	p.stats.SourceFrames = src.FrameCount()

	n := framesToEncode
	if total := src.FrameCount(); total >= 0 && n > total {
		p.log.WithFields(logrus.Fields{
			"requested": n,
			"available": total,
		}).Warn("requested more frames than the source holds, clamping")
		n = total
		p.stats.Clamped = true
	}

	if err := p.setup(); err != nil {
		return p.stats, err
	}
	defer p.deps.Encoder.Close()

	var loopErr error
	if p.cfg.Prefetch > 0 {
		loopErr = p.runPrefetch(ctx, n)
	} else {
		loopErr = p.runSequential(ctx, n)
	}

	err := p.finish(loopErr)
	p.stats.Duration = time.Since(p.start)
	return p.stats, err
}

func (p *Pipeline) setup() error {
	src := p.deps.Source
	p.srcW, p.srcH = src.Dimensions()
	p.srcFormat = src.Format()

	dstW, dstH := p.cfg.DstWidth, p.cfg.DstHeight
	if dstW == 0 {
		dstW = p.srcW
	}
	if dstH == 0 {
		dstH = p.srcH
	}

	conv, err := convert.NewContext(convert.Params{
		SrcWidth:  p.srcW,
		SrcHeight: p.srcH,
		DstWidth:  dstW,
		DstHeight: dstH,
		SrcFormat: p.srcFormat,
		DstFormat: p.cfg.DstFormat,
		Algorithm: p.cfg.Algorithm,
	})
	if err != nil {
		return fmt.Errorf("failed to create conversion context: %w", err)
	}
	p.conv = conv

	fps := src.FrameRate()
	if fps <= 0 {
		fps = DefaultFrameRate
	}

	params := encoder.Params{
		Width:       dstW,
		Height:      dstH,
		Format:      p.cfg.DstFormat,
		Codec:       p.cfg.Codec,
		FrameRate:   fps,
		GOPSize:     p.cfg.GOPSize,
		MaxBFrames:  p.cfg.MaxBFrames,
		BitRate:     p.cfg.BitRate,
		EncoderName: p.cfg.EncoderName,
		HWAccel:     p.cfg.HWAccel,
	}
	if err := p.deps.Encoder.Open(params); err != nil {
		return err
	}

	p.log.WithFields(logrus.Fields{
		"source": fmt.Sprintf("%dx%d %s", p.srcW, p.srcH, p.srcFormat),
		"output": fmt.Sprintf("%dx%d %s", dstW, dstH, p.cfg.DstFormat),
		"codec":  p.cfg.Codec,
		"fps":    fps,
		"scaler": p.cfg.Algorithm,
	}).Info("encoder opened")
	return nil
}

func (p *Pipeline) runSequential(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.step(i, n); err != nil {
			return err
		}
	}
	return nil
}

// step runs one iteration. Both frames are released on every path.
func (p *Pipeline) step(i, n int) (err error) {
	dst, err := p.prepare(i, n)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := p.alloc.Release(dst); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return p.encode(i, dst)
}

// prepare pulls frame i from the source and converts it into a freshly
// allocated destination frame owned by the caller.
func (p *Pipeline) prepare(i, n int) (dst *frame.Frame, err error) {
	raw, err := p.deps.Source.Next()
	if errors.Is(err, io.EOF) {
		return nil, &SourceExhaustedError{Requested: n, Delivered: i}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read frame %d: %w", i, err)
	}

	srcFrame, err := p.alloc.Allocate(p.srcW, p.srcH, p.srcFormat)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := p.alloc.Release(srcFrame); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if err := srcFrame.CopyFromPacked(raw.Data, raw.Stride); err != nil {
		return nil, fmt.Errorf("failed to copy frame %d: %w", i, err)
	}

	params := p.conv.Params()
	dst, err = p.alloc.Allocate(params.DstWidth, params.DstHeight, params.DstFormat)
	if err != nil {
		return nil, err
	}
	if err := p.conv.Convert(srcFrame, dst); err != nil {
		p.alloc.Release(dst)
		return nil, err
	}
	dst.PTS = int64(i)
	return dst, nil
}

// encode submits frame i and writes whatever packets come back. Packets
// returned next to a rejection belong to earlier buffered frames and are
// written before the rejection is acted on.
func (p *Pipeline) encode(i int, f *frame.Frame) error {
	packets, err := p.deps.Encoder.Submit(f, int64(i))
	p.stats.Frames++

	var failure *encoder.EncodeFailure
	if err != nil && !errors.As(err, &failure) {
		return err
	}

	if werr := p.writePackets(i, packets); werr != nil {
		return werr
	}

	if failure != nil {
		p.stats.EncodeFailures++
		p.log.WithError(err).WithField("frame", i).Warn("frame rejected by encoder")
		if p.cfg.AbortOnEncodeFailure {
			return err
		}
	}
	p.report(i+1, f)
	return nil
}

func (p *Pipeline) writePackets(i int, packets []encoder.Packet) error {
	for _, pkt := range packets {
		if pkt.Empty() {
			continue
		}
		if err := p.write(pkt); err != nil {
			return err
		}
		p.log.WithFields(logrus.Fields{
			"frame": i,
			"pts":   pkt.PTS,
			"size":  pkt.Size,
			"key":   pkt.Keyframe,
		}).Debug("wrote packet")
	}
	return nil
}

func (p *Pipeline) write(pkt encoder.Packet) error {
	err := p.deps.Writer.Write(pkt)

	var short *stream.ShortWriteError
	switch {
	case err == nil:
		p.stats.Packets++
		p.stats.Bytes += int64(pkt.Size)
		return nil
	case errors.As(err, &short):
		p.stats.Packets++
		p.stats.Bytes += int64(short.Got)
		p.stats.ShortWrites++
		if p.cfg.StrictWrites {
			return err
		}
		p.log.WithFields(logrus.Fields{
			"pts":     pkt.PTS,
			"wanted":  short.Want,
			"written": short.Got,
		}).Warn("could not write the whole packet, continuing")
		return nil
	default:
		return err
	}
}

func (p *Pipeline) report(done int, f *frame.Frame) {
	if p.deps.Progress == nil {
		return
	}
	total := p.stats.Requested
	if p.stats.Clamped {
		total = p.stats.SourceFrames
	}
	p.deps.Progress(Progress{
		Frame:     done,
		Total:     total,
		Packets:   p.stats.Packets,
		Bytes:     p.stats.Bytes,
		Elapsed:   time.Since(p.start),
		Converted: f,
	})
}

// finish drains the encoder and terminates the stream. loopErr takes
// precedence over anything that fails here.
func (p *Pipeline) finish(loopErr error) error {
	packets, flushErr := p.deps.Encoder.Flush()
	writeErr := p.writePackets(p.stats.Frames, packets)

	finalizeErr := p.deps.Writer.Finalize()
	var short *stream.ShortWriteError
	if errors.As(finalizeErr, &short) {
		p.stats.ShortWrites++
		if !p.cfg.StrictWrites {
			p.log.WithError(finalizeErr).Warn("end of stream marker truncated")
			finalizeErr = nil
		}
	}

	p.log.WithFields(logrus.Fields{
		"frames":          p.stats.Frames,
		"packets":         p.stats.Packets,
		"bytes":           p.stats.Bytes,
		"encode_failures": p.stats.EncodeFailures,
		"short_writes":    p.stats.ShortWrites,
	}).Info("stream finalized")

	for _, err := range []error{loopErr, flushErr, writeErr, finalizeErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

type prepared struct {
	index int
	frame *frame.Frame
	err   error
}

// runPrefetch converts frames on a producer goroutine while this goroutine
// submits them in order.
func (p *Pipeline) runPrefetch(ctx context.Context, n int) (err error) {
	frames := make(chan prepared, p.cfg.Prefetch)
	stop := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(frames)
		for i := 0; i < n; i++ {
			f, err := p.prepare(i, n)
			select {
			case frames <- prepared{index: i, frame: f, err: err}:
			case <-stop:
				if f != nil {
					p.alloc.Release(f)
				}
				return
			}
			if err != nil {
				return
			}
		}
	}()

	defer func() {
		close(stop)
		for item := range frames {
			if item.frame != nil {
				p.alloc.Release(item.frame)
			}
		}
		wg.Wait()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-frames:
			if !ok {
				return nil
			}
			if item.err != nil {
				return item.err
			}
			if err := p.consume(item); err != nil {
				return err
			}
		}
	}
}

func (p *Pipeline) consume(item prepared) (err error) {
	defer func() {
		if rerr := p.alloc.Release(item.frame); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return p.encode(item.index, item.frame)
}
