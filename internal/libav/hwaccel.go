package libav

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	ffmpeg "github.com/csnewman/ffmpeg-go"

	"github.com/linuxmatters/framecast/internal/encoder"
)

// HWAccel selects a hardware encoder family
type HWAccel string

const (
	HWAccelNone         HWAccel = "none"         // Software encoding
	HWAccelAuto         HWAccel = "auto"         // First available in priority order
	HWAccelNVENC        HWAccel = "nvenc"        // NVIDIA NVENC
	HWAccelVideoToolbox HWAccel = "videotoolbox" // Apple VideoToolbox (macOS)
)

// ParseHWAccel maps a flag value to an HWAccel. Empty means auto.
func ParseHWAccel(s string) (HWAccel, error) {
	switch a := HWAccel(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return HWAccelAuto, nil
	case HWAccelNone, HWAccelAuto, HWAccelNVENC, HWAccelVideoToolbox:
		return a, nil
	}
	return "", fmt.Errorf("unknown hwaccel %q (expected auto, none, nvenc or videotoolbox)", s)
}

// HWEncoder is a hardware encoder and whether it opened on this machine
type HWEncoder struct {
	Name        string // e.g. "h264_nvenc"
	Type        HWAccel
	Description string
	Available   bool
}

type encoderSpec struct {
	accel HWAccel
	desc  string
}

var linuxEncoderPriority = []encoderSpec{
	{HWAccelNVENC, "NVIDIA NVENC"},
}

var macOSEncoderPriority = []encoderSpec{
	{HWAccelVideoToolbox, "Apple VideoToolbox"},
}

func encoderPriority() []encoderSpec {
	if runtime.GOOS == "darwin" {
		return macOSEncoderPriority
	}
	return linuxEncoderPriority
}

// hwEncoderName builds the libavcodec name, e.g. h264 + nvenc = "h264_nvenc"
func hwEncoderName(codec encoder.CodecID, accel HWAccel) string {
	return fmt.Sprintf("%s_%s", codec, accel)
}

var (
	probeMu    sync.Mutex
	probeCache = map[string]bool{}
)

// testEncoderAvailable opens the encoder with minimal settings and system
// memory frames. Probing is cached per encoder name for the process.
func testEncoderAvailable(name string) bool {
	probeMu.Lock()
	defer probeMu.Unlock()

	if ok, cached := probeCache[name]; cached {
		return ok
	}
	ok := openTestEncoder(name)
	probeCache[name] = ok
	return ok
}

func openTestEncoder(name string) bool {
	codec := findEncoderByName(name)
	if codec == nil {
		return false
	}

	codecCtx := ffmpeg.AVCodecAllocContext3(codec)
	if codecCtx == nil {
		return false
	}
	defer ffmpeg.AVCodecFreeContext(&codecCtx)

	codecCtx.SetWidth(1280)
	codecCtx.SetHeight(720)
	codecCtx.SetPixFmt(ffmpeg.AVPixFmtNv12)
	codecCtx.SetTimeBase(ffmpeg.AVMakeQ(1, 30))
	codecCtx.SetFramerate(ffmpeg.AVMakeQ(30, 1))

	// Opening is the definitive test: it fails when the device is missing
	ret, _ := ffmpeg.AVCodecOpen2(codecCtx, codec, nil)
	return ret >= 0
}

// DetectHWEncoders probes the platform's hardware encoders for codec in
// priority order
func DetectHWEncoders(codec encoder.CodecID) []HWEncoder {
	var encoders []HWEncoder
	for _, spec := range encoderPriority() {
		name := hwEncoderName(codec, spec.accel)
		encoders = append(encoders, HWEncoder{
			Name:        name,
			Type:        spec.accel,
			Description: spec.desc,
			Available:   testEncoderAvailable(name),
		})
	}
	return encoders
}

// SelectBestEncoder returns the hardware encoder to use, or nil for software.
// Auto picks the first available; an explicit type is used only if available.
func SelectBestEncoder(codec encoder.CodecID, requested HWAccel) *HWEncoder {
	if requested == HWAccelNone {
		return nil
	}

	encoders := DetectHWEncoders(codec)
	for i := range encoders {
		if !encoders[i].Available {
			continue
		}
		if requested == HWAccelAuto || encoders[i].Type == requested {
			return &encoders[i]
		}
	}
	return nil
}

// EncoderStatus renders the hardware encoder table for codec
func EncoderStatus(codec encoder.CodecID) string {
	var sb strings.Builder
	sb.WriteString("Hardware Encoder Status:\n")

	for _, enc := range DetectHWEncoders(codec) {
		status := "not available"
		if enc.Available {
			status = "available"
		}
		fmt.Fprintf(&sb, "  %s (%s): %s\n", enc.Description, enc.Name, status)
	}

	soft := "not available"
	if id, ok := codecID(codec); ok && ffmpeg.AVCodecFindEncoder(id) != nil {
		soft = "available"
	}
	fmt.Fprintf(&sb, "  Software (%s): %s\n", codec, soft)
	return sb.String()
}
