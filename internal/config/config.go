// Package config holds framecast's defaults and the optional YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/linuxmatters/framecast/internal/convert"
	"github.com/linuxmatters/framecast/internal/encoder"
	"github.com/linuxmatters/framecast/internal/frame"
	"github.com/linuxmatters/framecast/internal/pipeline"
	"github.com/linuxmatters/framecast/internal/source"
)

// Output defaults
const (
	DefaultCodec     = "h264"
	DefaultHWAccel   = "none"
	DefaultDstFormat = "yuv420p"
	DefaultScaler    = "bicubic"
	DefaultAlign     = frame.DefaultAlign
)

// Logging defaults
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config is the user-facing configuration. String fields are parsed by
// Resolve so that the YAML file and the command line share one vocabulary.
type Config struct {
	Codec     string `yaml:"codec"`
	Encoder   string `yaml:"encoder"` // explicit libavcodec encoder name
	HWAccel   string `yaml:"hwaccel"`
	DstFormat string `yaml:"dst_format"`
	Size      string `yaml:"size"` // WIDTHxHEIGHT, empty keeps the source size
	Scaler    string `yaml:"scaler"`

	GOPSize    int   `yaml:"gop"`
	MaxBFrames int   `yaml:"bframes"`
	BitRate    int64 `yaml:"bitrate"`

	Align                int  `yaml:"align"`
	Prefetch             int  `yaml:"prefetch"`
	StrictWrites         bool `yaml:"strict_writes"`
	AbortOnEncodeFailure bool `yaml:"abort_on_encode_failure"`
	Sync                 bool `yaml:"sync"` // fsync the output after every packet

	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		Codec:     DefaultCodec,
		HWAccel:   DefaultHWAccel,
		DstFormat: DefaultDstFormat,
		Scaler:    DefaultScaler,
		Align:     DefaultAlign,
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field without building anything
func (c Config) Validate() error {
	_, err := c.Resolve()
	return err
}

// Resolve parses the configuration into pipeline settings
func (c Config) Resolve() (pipeline.Config, error) {
	var pc pipeline.Config
	var err error

	if pc.Codec, err = encoder.ParseCodecID(c.Codec); err != nil {
		return pc, err
	}
	if pc.DstFormat, err = frame.ParseFormat(c.DstFormat); err != nil {
		return pc, fmt.Errorf("invalid dst_format: %w", err)
	}
	if pc.Algorithm, err = convert.ParseAlgorithm(c.Scaler); err != nil {
		return pc, err
	}
	if c.Size != "" {
		if pc.DstWidth, pc.DstHeight, err = source.ParseSize(c.Size); err != nil {
			return pc, err
		}
	}

	switch strings.ToLower(c.HWAccel) {
	case "", "auto", "none", "nvenc", "videotoolbox":
	default:
		return pc, fmt.Errorf("invalid hwaccel %q (expected auto, none, nvenc or videotoolbox)", c.HWAccel)
	}

	switch {
	case c.GOPSize < 0:
		return pc, fmt.Errorf("invalid gop: %d", c.GOPSize)
	case c.MaxBFrames < 0:
		return pc, fmt.Errorf("invalid bframes: %d", c.MaxBFrames)
	case c.BitRate < 0:
		return pc, fmt.Errorf("invalid bitrate: %d", c.BitRate)
	case c.Align < 0:
		return pc, fmt.Errorf("invalid align: %d", c.Align)
	case c.Prefetch < 0:
		return pc, fmt.Errorf("invalid prefetch: %d", c.Prefetch)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return pc, fmt.Errorf("invalid log_format %q (expected text or json)", c.LogFormat)
	}

	pc.EncoderName = c.Encoder
	pc.HWAccel = strings.ToLower(c.HWAccel)
	pc.GOPSize = c.GOPSize
	pc.MaxBFrames = c.MaxBFrames
	pc.BitRate = c.BitRate
	pc.Align = c.Align
	pc.Prefetch = c.Prefetch
	pc.StrictWrites = c.StrictWrites
	pc.AbortOnEncodeFailure = c.AbortOnEncodeFailure
	return pc, nil
}
