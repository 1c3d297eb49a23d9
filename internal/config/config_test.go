package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/linuxmatters/framecast/internal/convert"
	"github.com/linuxmatters/framecast/internal/encoder"
	"github.com/linuxmatters/framecast/internal/frame"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "framecast.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// TestDefaults_Resolve verifies the built-in configuration reproduces the
// classic BGR24 to YUV420P H.264 setup.
func TestDefaults_Resolve(t *testing.T) {
	pc, err := Defaults().Resolve()
	if err != nil {
		t.Fatalf("Defaults().Resolve() error = %v", err)
	}

	if pc.Codec != encoder.H264 {
		t.Errorf("Codec = %s, want h264", pc.Codec)
	}
	if pc.DstFormat != frame.FormatYUV420P {
		t.Errorf("DstFormat = %s, want yuv420p", pc.DstFormat)
	}
	if pc.Algorithm != convert.Bicubic {
		t.Errorf("Algorithm = %s, want bicubic", pc.Algorithm)
	}
	if pc.DstWidth != 0 || pc.DstHeight != 0 {
		t.Errorf("output size = %dx%d, want source size", pc.DstWidth, pc.DstHeight)
	}
	if pc.StrictWrites {
		t.Error("StrictWrites should default to false")
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
codec: hevc
dst_format: nv12
size: 640x360
scaler: bilinear
gop: 60
bitrate: 2000000
prefetch: 4
strict_writes: true
log_format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Unset keys keep their defaults
	if cfg.HWAccel != DefaultHWAccel {
		t.Errorf("HWAccel = %q, want default %q", cfg.HWAccel, DefaultHWAccel)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want default %q", cfg.LogLevel, DefaultLogLevel)
	}

	pc, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if pc.Codec != encoder.HEVC || pc.DstFormat != frame.FormatNV12 {
		t.Errorf("got %s/%s, want hevc/nv12", pc.Codec, pc.DstFormat)
	}
	if pc.DstWidth != 640 || pc.DstHeight != 360 {
		t.Errorf("size = %dx%d, want 640x360", pc.DstWidth, pc.DstHeight)
	}
	if pc.Algorithm != convert.Bilinear {
		t.Errorf("Algorithm = %s, want bilinear", pc.Algorithm)
	}
	if pc.GOPSize != 60 || pc.BitRate != 2000000 || pc.Prefetch != 4 || !pc.StrictWrites {
		t.Errorf("rate control not applied: %+v", pc)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != Defaults() {
		t.Errorf("Load(empty) = %+v, want defaults", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"unknown key", "codec: h264\nframerate: 30\n"},
		{"bad yaml", "codec: [h264\n"},
		{"wrong type", "gop: many\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) expected error, got nil")
	}
}

func TestValidate_Rejects(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"codec", func(c *Config) { c.Codec = "vp9" }},
		{"dst format", func(c *Config) { c.DstFormat = "yuv444p" }},
		{"scaler", func(c *Config) { c.Scaler = "lanczos" }},
		{"size", func(c *Config) { c.Size = "640" }},
		{"hwaccel", func(c *Config) { c.HWAccel = "vaapi" }},
		{"gop", func(c *Config) { c.GOPSize = -1 }},
		{"bframes", func(c *Config) { c.MaxBFrames = -2 }},
		{"bitrate", func(c *Config) { c.BitRate = -1 }},
		{"prefetch", func(c *Config) { c.Prefetch = -1 }},
		{"log format", func(c *Config) { c.LogFormat = "xml" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() expected error for %s", tc.name)
			}
		})
	}
}
