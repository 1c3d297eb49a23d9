package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxmatters/framecast/internal/bitstream"
	"github.com/linuxmatters/framecast/internal/encoder"
	"github.com/linuxmatters/framecast/internal/encoder/encodertest"
	"github.com/linuxmatters/framecast/internal/frame"
	"github.com/linuxmatters/framecast/internal/source"
	"github.com/linuxmatters/framecast/internal/stream"
)

type harness struct {
	codec  *encodertest.Scripted
	enc    *encoder.Encoder
	sink   *stream.MemorySink
	writer *stream.Writer
	hook   *logtest.Hook
	deps   Deps
}

func solidSource(frames int) *source.Synthetic {
	return source.NewSynthetic(source.SyntheticConfig{
		Width:     64,
		Height:    48,
		Frames:    frames,
		FrameRate: 30,
		Colour:    color.RGBA{0x20, 0x80, 0xC0, 0xFF},
	})
}

func newHarness(t *testing.T, src source.Source, codec *encodertest.Scripted) *harness {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &harness{
		codec: codec,
		enc:   encoder.New(codec.Registry(encoder.H264)),
		sink:  &stream.MemorySink{},
		hook:  hook,
	}
	h.writer = stream.NewWriter(h.sink)
	h.deps = Deps{
		Source:  src,
		Encoder: h.enc,
		Writer:  h.writer,
		Logger:  logger,
	}
	return h
}

func defaultConfig() Config {
	return Config{
		Codec:     encoder.H264,
		DstFormat: frame.FormatYUV420P,
	}
}

func run(t *testing.T, h *harness, cfg Config, frames int) (Stats, error) {
	t.Helper()
	p, err := New(cfg, h.deps)
	require.NoError(t, err)
	return p.Run(context.Background(), frames)
}

func TestRun_EncodesRequestedFrames(t *testing.T) {
	h := newHarness(t, solidSource(10), &encodertest.Scripted{})

	stats, err := run(t, h, defaultConfig(), 5)
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 1, 2, 3, 4}, h.codec.Sent)
	assert.Equal(t, 5, stats.Frames)
	assert.Equal(t, 5, stats.Packets)
	assert.False(t, stats.Clamped)

	out := h.sink.Bytes()
	require.NotEmpty(t, out)
	assert.True(t, bytes.HasSuffix(out, stream.EndOfSequence))
	assert.True(t, h.sink.Closed)

	report := bitstream.Scan(out)
	assert.Equal(t, stats.Packets, report.AccessUnits)
	assert.True(t, report.HasEndMarker)
	assert.Equal(t, int64(len(out)-len(stream.EndOfSequence)), stats.Bytes)
}

func TestRun_ZeroFrames(t *testing.T) {
	h := newHarness(t, solidSource(10), &encodertest.Scripted{})

	stats, err := run(t, h, defaultConfig(), 0)
	require.NoError(t, err)

	assert.Empty(t, h.codec.Sent)
	assert.True(t, h.codec.Drained)
	assert.Equal(t, 0, stats.Packets)
	assert.Equal(t, stream.EndOfSequence, h.sink.Bytes())
}

func TestRun_ClampsToSourceTotal(t *testing.T) {
	h := newHarness(t, solidSource(10), &encodertest.Scripted{})

	stats, err := run(t, h, defaultConfig(), 25)
	require.NoError(t, err)

	assert.Len(t, h.codec.Sent, 10)
	assert.True(t, stats.Clamped)
	assert.Equal(t, 25, stats.Requested)
	assert.Equal(t, 10, stats.Frames)

	var warned bool
	for _, e := range h.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["available"] == 10 {
			warned = true
		}
	}
	assert.True(t, warned, "clamping must be logged as a warning")
}

func TestRun_BufferedEncoderNeverInventsPackets(t *testing.T) {
	h := newHarness(t, solidSource(10), &encodertest.Scripted{Delay: 3})

	stats, err := run(t, h, defaultConfig(), 8)
	require.NoError(t, err)

	assert.Equal(t, 8, stats.Packets)
	assert.LessOrEqual(t, stats.Packets, len(h.codec.Sent))
	assert.Equal(t, stats.Packets, bitstream.Scan(h.sink.Bytes()).AccessUnits)
}

// shortSource reports more frames than it can deliver
type shortSource struct {
	*source.Synthetic
	reported int
}

func (s *shortSource) FrameCount() int { return s.reported }

func TestRun_SourceExhausted(t *testing.T) {
	src := &shortSource{Synthetic: solidSource(3), reported: 10}
	h := newHarness(t, src, &encodertest.Scripted{})

	stats, err := run(t, h, defaultConfig(), 5)

	var exhausted *SourceExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 5, exhausted.Requested)
	assert.Equal(t, 3, exhausted.Delivered)
	assert.Equal(t, 3, stats.Frames)

	// The partial stream is still drained and terminated
	assert.True(t, bytes.HasSuffix(h.sink.Bytes(), stream.EndOfSequence))
	assert.Equal(t, 3, bitstream.Scan(h.sink.Bytes()).AccessUnits)
}

func TestRun_EncodeFailureContinues(t *testing.T) {
	codec := &encodertest.Scripted{Fail: map[int64]error{2: errors.New("bad frame")}}
	h := newHarness(t, solidSource(10), codec)

	stats, err := run(t, h, defaultConfig(), 5)
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 1, 2, 3, 4}, codec.Sent)
	assert.Equal(t, 1, stats.EncodeFailures)
	assert.Equal(t, 4, stats.Packets)
}

// rejectingCodec hands back the buffered packets of earlier frames together
// with the rejection of one frame, the way libavcodec can
type rejectingCodec struct {
	*encodertest.Scripted
	rejectAt int64
}

func (c *rejectingCodec) Send(f *frame.Frame, pts int64) ([]encoder.Packet, error) {
	if pts != c.rejectAt {
		return c.Scripted.Send(f, pts)
	}
	packets, _ := c.Scripted.Drain()
	return packets, errors.New("bad frame")
}

func TestRun_EncodeFailureKeepsEarlierPackets(t *testing.T) {
	for _, abort := range []bool{false, true} {
		codec := &rejectingCodec{Scripted: &encodertest.Scripted{Delay: 1}, rejectAt: 2}
		h := newHarness(t, solidSource(10), codec.Scripted)

		reg := encoder.NewRegistry()
		reg.Register(encoder.H264, func() encoder.Codec { return codec })
		h.enc = encoder.New(reg)
		h.deps.Encoder = h.enc

		cfg := defaultConfig()
		cfg.AbortOnEncodeFailure = abort
		stats, err := run(t, h, cfg, 5)

		assert.Equal(t, 1, stats.EncodeFailures)
		report := bitstream.Scan(h.sink.Bytes())
		assert.True(t, report.HasEndMarker)
		assert.Equal(t, stats.Packets, report.AccessUnits)

		if abort {
			var failure *encoder.EncodeFailure
			require.ErrorAs(t, err, &failure)
			// Frames 0 and 1, the second one released by the rejected call
			assert.Equal(t, 2, stats.Packets)
			continue
		}

		require.NoError(t, err)
		// Frame 1 comes back with the rejection of frame 2, frames 3 and 4
		// follow. Only the rejected frame is missing.
		assert.Equal(t, 4, stats.Packets)
	}
}

func TestRun_AbortOnEncodeFailure(t *testing.T) {
	codec := &encodertest.Scripted{Fail: map[int64]error{2: errors.New("bad frame")}}
	h := newHarness(t, solidSource(10), codec)

	cfg := defaultConfig()
	cfg.AbortOnEncodeFailure = true
	_, err := run(t, h, cfg, 5)

	var failure *encoder.EncodeFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 2, failure.FrameIndex)
	assert.Equal(t, []int64{0, 1, 2}, codec.Sent)
	assert.True(t, bytes.HasSuffix(h.sink.Bytes(), stream.EndOfSequence))
}

func TestRun_ShortWritesTolerated(t *testing.T) {
	h := newHarness(t, solidSource(10), &encodertest.Scripted{})
	h.sink.ShortAfter = 40

	stats, err := run(t, h, defaultConfig(), 5)
	require.NoError(t, err)

	assert.Len(t, h.codec.Sent, 5)
	assert.Positive(t, stats.ShortWrites)
	assert.Len(t, h.sink.Bytes(), 40)
}

func TestRun_StrictWrites(t *testing.T) {
	h := newHarness(t, solidSource(10), &encodertest.Scripted{})
	h.sink.ShortAfter = 40

	cfg := defaultConfig()
	cfg.StrictWrites = true
	_, err := run(t, h, cfg, 5)

	var short *stream.ShortWriteError
	require.ErrorAs(t, err, &short)
	assert.Less(t, len(h.codec.Sent), 5)
}

func TestRun_PrefetchMatchesSequential(t *testing.T) {
	sequential := newHarness(t, source.NewSynthetic(source.SyntheticConfig{
		Width: 64, Height: 48, Frames: 12, FrameRate: 30, Pattern: true,
	}), &encodertest.Scripted{Delay: 2})
	_, err := run(t, sequential, defaultConfig(), 12)
	require.NoError(t, err)

	prefetched := newHarness(t, source.NewSynthetic(source.SyntheticConfig{
		Width: 64, Height: 48, Frames: 12, FrameRate: 30, Pattern: true,
	}), &encodertest.Scripted{Delay: 2})
	cfg := defaultConfig()
	cfg.Prefetch = 4
	stats, err := run(t, prefetched, cfg, 12)
	require.NoError(t, err)

	assert.Equal(t, 12, stats.Frames)
	assert.Equal(t, sequential.codec.Sent, prefetched.codec.Sent)
	assert.Equal(t, sequential.sink.Bytes(), prefetched.sink.Bytes())
}

func TestRun_PrefetchSourceExhausted(t *testing.T) {
	src := &shortSource{Synthetic: solidSource(3), reported: 10}
	h := newHarness(t, src, &encodertest.Scripted{})

	cfg := defaultConfig()
	cfg.Prefetch = 2
	_, err := run(t, h, cfg, 6)

	var exhausted *SourceExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, []int64{0, 1, 2}, h.codec.Sent)
}

func TestRun_Cancellation(t *testing.T) {
	for _, prefetch := range []int{0, 2} {
		h := newHarness(t, solidSource(10), &encodertest.Scripted{})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		h.deps.Progress = func(p Progress) {
			if p.Frame == 3 {
				cancel()
			}
		}

		cfg := defaultConfig()
		cfg.Prefetch = prefetch
		p, err := New(cfg, h.deps)
		require.NoError(t, err)

		stats, err := p.Run(ctx, 10)
		require.ErrorIs(t, err, context.Canceled)
		assert.GreaterOrEqual(t, stats.Frames, 3)
		assert.Less(t, stats.Frames, 10)
		assert.True(t, bytes.HasSuffix(h.sink.Bytes(), stream.EndOfSequence))
	}
}

func TestRun_ProgressReported(t *testing.T) {
	h := newHarness(t, solidSource(10), &encodertest.Scripted{})
	var updates []Progress
	h.deps.Progress = func(p Progress) {
		require.NotNil(t, p.Converted)
		assert.False(t, p.Converted.Released())
		updates = append(updates, p)
	}

	_, err := run(t, h, defaultConfig(), 4)
	require.NoError(t, err)

	require.Len(t, updates, 4)
	assert.Equal(t, 4, updates[3].Frame)
	assert.Equal(t, 4, updates[3].Total)
	assert.Equal(t, 4, updates[3].Packets)
}

func TestRun_OutputGeometry(t *testing.T) {
	h := newHarness(t, solidSource(2), &encodertest.Scripted{})

	cfg := defaultConfig()
	cfg.DstFormat = frame.FormatNV12
	cfg.DstWidth, cfg.DstHeight = 32, 24
	cfg.GOPSize = 12
	_, err := run(t, h, cfg, 2)
	require.NoError(t, err)

	assert.Equal(t, 32, h.codec.Params.Width)
	assert.Equal(t, 24, h.codec.Params.Height)
	assert.Equal(t, frame.FormatNV12, h.codec.Params.Format)
	assert.Equal(t, 12, h.codec.Params.GOPSize)
	assert.Equal(t, 30.0, h.codec.Params.FrameRate)
}

func TestRun_UnsupportedCodec(t *testing.T) {
	h := newHarness(t, solidSource(2), &encodertest.Scripted{})

	cfg := defaultConfig()
	cfg.Codec = encoder.HEVC
	_, err := run(t, h, cfg, 2)

	var unsupported *encoder.UnsupportedCodecError
	require.ErrorAs(t, err, &unsupported)
	assert.False(t, h.writer.Finalized(), "setup failures leave the output to the caller")
}

func TestRun_NegativeFrameCount(t *testing.T) {
	h := newHarness(t, solidSource(2), &encodertest.Scripted{})
	_, err := run(t, h, defaultConfig(), -1)
	assert.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	h := newHarness(t, solidSource(2), &encodertest.Scripted{})

	_, err := New(defaultConfig(), Deps{Encoder: h.enc, Writer: h.writer})
	assert.Error(t, err)

	cfg := defaultConfig()
	cfg.DstFormat = frame.FormatNone
	_, err = New(cfg, h.deps)
	assert.Error(t, err)

	cfg = defaultConfig()
	cfg.Prefetch = -1
	_, err = New(cfg, h.deps)
	assert.Error(t, err)
}
