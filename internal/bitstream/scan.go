// Package bitstream inspects raw H.264 Annex B elementary streams.
package bitstream

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Eyevinn/mp4ff/avc"
)

// EndOfSequence is the 4-byte marker terminating a finalized stream
var EndOfSequence = []byte{0x00, 0x00, 0x01, 0xB7}

// Report summarises the contents of a stream
type Report struct {
	Bytes        int
	HasEndMarker bool
	AccessUnits  int // pictures, counted by their first slice
	Keyframes    int
	NALUs        map[avc.NaluType]int
}

// Scan walks the NAL units of an Annex B stream
func Scan(data []byte) Report {
	r := Report{
		Bytes: len(data),
		NALUs: make(map[avc.NaluType]int),
	}
	if bytes.HasSuffix(data, EndOfSequence) {
		r.HasEndMarker = true
		data = data[:len(data)-len(EndOfSequence)]
	}
	if len(data) == 0 {
		return r
	}

	for _, nalu := range avc.ExtractNalusFromByteStream(data) {
		if len(nalu) == 0 {
			continue
		}
		naluType := avc.GetNaluType(nalu[0])
		r.NALUs[naluType]++

		if !avc.IsVideoNaluType(naluType) || !firstSliceOfPicture(nalu) {
			continue
		}
		r.AccessUnits++
		if naluType == avc.NALU_IDR {
			r.Keyframes++
		}
	}
	return r
}

// firstSliceOfPicture checks first_mb_in_slice == 0, which is a ue(v)
// coded as a single set bit.
func firstSliceOfPicture(nalu []byte) bool {
	return len(nalu) > 1 && nalu[1]&0x80 != 0
}

// ScanFile reads and scans a stream file
func ScanFile(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read stream: %w", err)
	}
	return Scan(data), nil
}

// String renders NAL unit counts in type order, e.g. "SPS=1 PPS=1 IDR=1"
func (r Report) String() string {
	types := make([]avc.NaluType, 0, len(r.NALUs))
	for t := range r.NALUs {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%s=%d", t, r.NALUs[t]))
	}
	return fmt.Sprintf("%d bytes, %d access units (%d key), NALUs: %s, end marker: %t",
		r.Bytes, r.AccessUnits, r.Keyframes, strings.Join(parts, " "), r.HasEndMarker)
}
