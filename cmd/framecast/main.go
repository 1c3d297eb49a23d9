package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/linuxmatters/framecast/internal/bitstream"
	"github.com/linuxmatters/framecast/internal/cli"
	"github.com/linuxmatters/framecast/internal/config"
	"github.com/linuxmatters/framecast/internal/encoder"
	"github.com/linuxmatters/framecast/internal/libav"
	"github.com/linuxmatters/framecast/internal/pipeline"
	"github.com/linuxmatters/framecast/internal/source"
	"github.com/linuxmatters/framecast/internal/stream"
	"github.com/linuxmatters/framecast/internal/ui"
)

// version is set via ldflags at build time
// Local dev builds: "dev"
// Release builds: git tag (e.g. "v0.1.0")
var version = "dev"

// previewInterval limits how often the luma preview is rebuilt
const previewInterval = 100 * time.Millisecond

// logInterval limits plain-mode progress lines
const logInterval = time.Second

var CLI struct {
	Input  string `arg:"" name:"input" help:"Input video file, or synthetic:WIDTHxHEIGHT[:FRAMES[:RRGGBB|pattern]]" optional:""`
	Output string `arg:"" name:"output" help:"Output elementary stream (.h264 or .hevc)" optional:""`
	Frames int    `arg:"" name:"frames" help:"Number of frames to encode" optional:"" default:"-1"`

	Config    string `help:"YAML configuration file" placeholder:"file"`
	Codec     string `help:"Output codec: h264 or hevc" placeholder:"codec" group:"encode"`
	Encoder   string `help:"Explicit libavcodec encoder name, e.g. libx264" placeholder:"name" group:"encode"`
	HWAccel   string `name:"hwaccel" help:"Hardware encoder: auto, none, nvenc or videotoolbox" placeholder:"type" group:"encode"`
	DstFormat string `name:"dst-format" help:"Encoder pixel format: yuv420p or nv12" placeholder:"format" group:"convert"`
	Size      string `help:"Output size, defaults to the input size" placeholder:"WxH" group:"convert"`
	Scaler    string `help:"Scaling algorithm: bicubic, bilinear, approx-bilinear or nearest" placeholder:"algorithm" group:"convert"`
	GOP       int    `name:"gop" help:"Keyframe interval in frames" group:"encode"`
	BFrames   int    `name:"bframes" help:"Maximum consecutive B-frames" group:"encode"`
	BitRate   int64  `name:"bitrate" help:"Target bit rate in bits per second" group:"encode"`
	Prefetch  int    `help:"Convert up to N frames ahead of the encoder" group:"convert"`

	StrictWrites bool `name:"strict-writes" help:"Treat a short write as fatal" group:"output"`
	AbortOnFail  bool `name:"abort-on-encode-failure" help:"Stop at the first frame the encoder rejects" group:"output"`
	Sync         bool `help:"Sync the output file after every packet" group:"output"`

	FFmpeg  string `name:"ffmpeg" help:"Path to the ffmpeg binary" placeholder:"path" group:"input"`
	FFprobe string `name:"ffprobe" help:"Path to the ffprobe binary" placeholder:"path" group:"input"`

	LogLevel  string `name:"log-level" help:"Log level: debug, info, warn or error" placeholder:"level" group:"display"`
	LogFormat string `name:"log-format" help:"Log format: text or json" placeholder:"format" group:"display"`

	NoProgress   bool `name:"no-progress" help:"Disable the interactive progress display" group:"display"`
	NoPreview    bool `name:"no-preview" help:"Disable the frame preview in the progress display" group:"display"`
	Verify       bool `help:"Scan the output stream after encoding" group:"output"`
	ListEncoders bool `name:"list-encoders" help:"Show available hardware and software encoders"`
	Version      bool `help:"Show version information"`
}

func main() {
	parser, err := kong.New(&CLI,
		kong.Name("framecast"),
		kong.Description("Convert raw frames to YUV and encode them into an elementary stream."),
		kong.Vars{"version": version},
		kong.ExplicitGroups([]kong.Group{
			{Key: "encode", Title: "Encoding"},
			{Key: "convert", Title: "Conversion"},
			{Key: "input", Title: "Input"},
			{Key: "output", Title: "Output"},
			{Key: "display", Title: "Logging and display"},
		}),
		kong.Help(cli.StyledHelpPrinter(
			"framecast input.mp4 out.h264 300",
			"framecast synthetic:1280x720:60:pattern out.h264 60 --gop 30 --verify",
			"framecast input.mkv out.hevc 500 --codec hevc --hwaccel auto --size 1280x720",
		)),
	)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
	if _, err := parser.Parse(os.Args[1:]); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	if CLI.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	if err := run(); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

// loadConfig layers the command line over the config file over the defaults
func loadConfig() (config.Config, error) {
	cfg := config.Defaults()
	if CLI.Config != "" {
		var err error
		if cfg, err = config.Load(CLI.Config); err != nil {
			return cfg, err
		}
	}

	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&cfg.Codec, CLI.Codec)
	setString(&cfg.Encoder, CLI.Encoder)
	setString(&cfg.HWAccel, CLI.HWAccel)
	setString(&cfg.DstFormat, CLI.DstFormat)
	setString(&cfg.Size, CLI.Size)
	setString(&cfg.Scaler, CLI.Scaler)
	setString(&cfg.FFmpegPath, CLI.FFmpeg)
	setString(&cfg.FFprobePath, CLI.FFprobe)
	setString(&cfg.LogLevel, CLI.LogLevel)
	setString(&cfg.LogFormat, CLI.LogFormat)

	if CLI.GOP != 0 {
		cfg.GOPSize = CLI.GOP
	}
	if CLI.BFrames != 0 {
		cfg.MaxBFrames = CLI.BFrames
	}
	if CLI.BitRate != 0 {
		cfg.BitRate = CLI.BitRate
	}
	if CLI.Prefetch != 0 {
		cfg.Prefetch = CLI.Prefetch
	}
	cfg.StrictWrites = cfg.StrictWrites || CLI.StrictWrites
	cfg.AbortOnEncodeFailure = cfg.AbortOnEncodeFailure || CLI.AbortOnFail
	cfg.Sync = cfg.Sync || CLI.Sync

	return cfg, cfg.Validate()
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := cli.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}

	if CLI.ListEncoders {
		for _, id := range []encoder.CodecID{encoder.H264, encoder.HEVC} {
			cli.PrintSection(string(id))
			fmt.Print(libav.EncoderStatus(id))
		}
		return nil
	}

	if CLI.Input == "" || CLI.Output == "" || CLI.Frames < 0 {
		return errors.New("<input>, <output> and <frames> are required")
	}

	pc, err := cfg.Resolve()
	if err != nil {
		return err
	}

	src, err := source.Open(CLI.Input, source.Options{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	defer src.Close()

	sink, err := stream.OpenFileSink(CLI.Output)
	if err != nil {
		return err
	}
	sink.SetSync(cfg.Sync)
	writer := stream.NewWriter(sink)
	defer func() {
		// Finalize closes the sink, setup failures leave it to us
		if !writer.Finalized() {
			sink.Close()
		}
	}()

	reg := encoder.NewRegistry()
	libav.Register(reg, log)
	enc := encoder.New(reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := pipeline.Deps{
		Source:  src,
		Encoder: enc,
		Writer:  writer,
		Logger:  log,
	}

	fps := src.FrameRate()
	if fps <= 0 {
		fps = pipeline.DefaultFrameRate
	}

	interactive := !CLI.NoProgress && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))

	var stats pipeline.Stats
	if interactive {
		stats, err = runInteractive(ctx, log, pc, deps, enc, fps)
	} else {
		stats, err = runPlain(ctx, log, pc, deps, enc, fps)
	}
	if err != nil {
		return err
	}

	if CLI.Verify {
		return verify(log, pc, stats)
	}
	return nil
}

func runPlain(ctx context.Context, log *logrus.Logger, pc pipeline.Config, deps pipeline.Deps, enc *encoder.Encoder, fps float64) (pipeline.Stats, error) {
	var lastLog time.Time
	deps.Progress = func(p pipeline.Progress) {
		if time.Since(lastLog) < logInterval && p.Frame != p.Total {
			return
		}
		lastLog = time.Now()
		log.WithFields(logrus.Fields{
			"frame":   p.Frame,
			"total":   p.Total,
			"packets": p.Packets,
			"bytes":   p.Bytes,
		}).Info("encoding")
	}

	p, err := pipeline.New(pc, deps)
	if err != nil {
		return pipeline.Stats{}, err
	}
	stats, err := p.Run(ctx, CLI.Frames)
	if err != nil {
		return stats, err
	}

	cli.PrintSummary(cli.Summary{
		Output:      CLI.Output,
		Encoder:     enc.Name(),
		Frames:      stats.Frames,
		Requested:   stats.Requested,
		Packets:     stats.Packets,
		Bytes:       stats.Bytes,
		ShortWrites: stats.ShortWrites,
		Failures:    stats.EncodeFailures,
		Duration:    stats.Duration,
		FrameRate:   fps,
	})
	return stats, nil
}

func runInteractive(ctx context.Context, log *logrus.Logger, pc pipeline.Config, deps pipeline.Deps, enc *encoder.Encoder, fps float64) (pipeline.Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Log lines would tear the TUI, hold them until it exits
	var held bytes.Buffer
	log.SetOutput(&held)
	defer func() {
		log.SetOutput(os.Stderr)
		os.Stderr.Write(held.Bytes())
	}()

	srcW, srcH := deps.Source.Dimensions()
	dstW, dstH := pc.DstWidth, pc.DstHeight
	if dstW == 0 || dstH == 0 {
		dstW, dstH = srcW, srcH
	}
	title := fmt.Sprintf("%dx%d %s → %dx%d %s %s",
		srcW, srcH, deps.Source.Format(), dstW, dstH, pc.DstFormat, pc.Codec)

	model := ui.NewModel(title, CLI.NoPreview)
	program := tea.NewProgram(model)

	var lastPreview time.Time
	deps.Progress = func(p pipeline.Progress) {
		msg := ui.Progress{
			Frame:     p.Frame,
			Total:     p.Total,
			Packets:   p.Packets,
			Bytes:     p.Bytes,
			Elapsed:   p.Elapsed,
			FrameRate: fps,
		}
		if !CLI.NoPreview && time.Since(lastPreview) >= previewInterval {
			msg.Preview = ui.DownsampleLuma(p.Converted, ui.DefaultPreviewConfig())
			lastPreview = time.Now()
		}
		program.Send(msg)
	}

	p, err := pipeline.New(pc, deps)
	if err != nil {
		return pipeline.Stats{}, err
	}

	var stats pipeline.Stats
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		stats, runErr = p.Run(ctx, CLI.Frames)
		program.Send(ui.Complete{
			OutputFile:     CLI.Output,
			EncoderName:    enc.Name(),
			Frames:         stats.Frames,
			Requested:      stats.Requested,
			Packets:        stats.Packets,
			Bytes:          stats.Bytes,
			EncodeFailures: stats.EncodeFailures,
			ShortWrites:    stats.ShortWrites,
			TotalTime:      stats.Duration,
			FrameRate:      fps,
			Err:            runErr,
		})
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return stats, fmt.Errorf("running UI: %w", err)
	}

	// Quitting the UI early (ctrl+c) stops the pipeline
	cancel()
	<-done

	if summary := model.CompletionSummary(); summary != "" {
		fmt.Print(summary)
	}
	return stats, runErr
}

// verify checks the finished stream on disk. The NAL unit scan only
// understands H.264, HEVC output is checked for its end marker.
func verify(log *logrus.Logger, pc pipeline.Config, stats pipeline.Stats) error {
	report, err := bitstream.ScanFile(CLI.Output)
	if err != nil {
		return err
	}
	if !report.HasEndMarker {
		return fmt.Errorf("%s: end of sequence marker missing", CLI.Output)
	}
	if pc.Codec != encoder.H264 {
		cli.PrintSuccess(fmt.Sprintf("%s: %d bytes, end marker present", CLI.Output, report.Bytes))
		return nil
	}

	cli.PrintInfo("Stream", report.String())
	if report.AccessUnits != stats.Packets {
		log.WithFields(logrus.Fields{
			"access_units": report.AccessUnits,
			"packets":      stats.Packets,
		}).Warn("access unit count differs from packets written")
	}
	cli.PrintSuccess(fmt.Sprintf("%s verified", CLI.Output))
	return nil
}
