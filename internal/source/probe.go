package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Metadata describes the first video stream of an input
type Metadata struct {
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int // -1 when the container does not say
	Codec      string
}

// Probe runs ffprobe against path
func Probe(ffprobePath, path string) (Metadata, error) {
	cmd := exec.Command(ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=codec_name,width,height,r_frame_rate,avg_frame_rate,nb_frames,nb_read_packets",
		"-print_format", "json",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Metadata{}, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) (Metadata, error) {
	var probeData struct {
		Streams []struct {
			CodecName     string `json:"codec_name"`
			Width         int    `json:"width"`
			Height        int    `json:"height"`
			RFrameRate    string `json:"r_frame_rate"`
			AvgFrameRate  string `json:"avg_frame_rate"`
			NbFrames      string `json:"nb_frames"`
			NbReadPackets string `json:"nb_read_packets"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(data, &probeData); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probeData.Streams) == 0 {
		return Metadata{}, errors.New("no video stream found")
	}

	s := probeData.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return Metadata{}, fmt.Errorf("invalid video dimensions: %dx%d", s.Width, s.Height)
	}

	md := Metadata{
		Width:      s.Width,
		Height:     s.Height,
		Codec:      s.CodecName,
		FrameCount: -1,
	}

	md.FrameRate = parseRate(s.AvgFrameRate)
	if md.FrameRate <= 0 {
		md.FrameRate = parseRate(s.RFrameRate)
	}

	// Packet counting reads the whole stream, so it wins over the header
	for _, v := range []string{s.NbReadPackets, s.NbFrames} {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			md.FrameCount = n
			break
		}
	}
	return md, nil
}

// parseRate converts "30000/1001" or "25" to frames per second. Unknown
// rates ("0/0", "") return 0.
func parseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
