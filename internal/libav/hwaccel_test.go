package libav

import (
	"testing"

	"github.com/linuxmatters/framecast/internal/encoder"
)

func TestParseHWAccel(t *testing.T) {
	tests := []struct {
		in      string
		want    HWAccel
		wantErr bool
	}{
		{"", HWAccelAuto, false},
		{"auto", HWAccelAuto, false},
		{"NONE", HWAccelNone, false},
		{"nvenc", HWAccelNVENC, false},
		{" videotoolbox ", HWAccelVideoToolbox, false},
		{"vaapi", "", true},
	}

	for _, tt := range tests {
		got, err := ParseHWAccel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHWAccel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHWAccel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHWEncoderName(t *testing.T) {
	if got := hwEncoderName(encoder.H264, HWAccelNVENC); got != "h264_nvenc" {
		t.Errorf("hwEncoderName() = %q, want h264_nvenc", got)
	}
	if got := hwEncoderName(encoder.HEVC, HWAccelVideoToolbox); got != "hevc_videotoolbox" {
		t.Errorf("hwEncoderName() = %q, want hevc_videotoolbox", got)
	}
}

func TestDetectHWEncoders(t *testing.T) {
	encoders := DetectHWEncoders(encoder.H264)

	t.Logf("Detected %d encoder types", len(encoders))

	for _, enc := range encoders {
		status := "not available"
		if enc.Available {
			status = "AVAILABLE"
		}
		t.Logf("  %s (%s): %s", enc.Description, enc.Name, status)
	}
}

func TestSelectBestEncoder(t *testing.T) {
	enc := SelectBestEncoder(encoder.H264, HWAccelAuto)
	if enc != nil {
		t.Logf("Auto-selected encoder: %s (%s)", enc.Description, enc.Name)
	} else {
		t.Log("No hardware encoder available, will use software")
	}

	enc = SelectBestEncoder(encoder.H264, HWAccelNone)
	if enc != nil {
		t.Errorf("Expected nil for HWAccelNone, got %s", enc.Name)
	}
}

func TestEncoderStatus(t *testing.T) {
	status := EncoderStatus(encoder.H264)
	t.Logf("\n%s", status)
}
