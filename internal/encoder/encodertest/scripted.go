// Package encodertest provides a scripted codec backend for tests.
package encodertest

import (
	"github.com/linuxmatters/framecast/internal/encoder"
	"github.com/linuxmatters/framecast/internal/frame"
)

// Scripted is an in-memory codec that emits one Annex B access unit per
// accepted frame. Delay frames are held back before the first packet, the
// way a B-frame encoder reorders.
type Scripted struct {
	Delay   int
	Fail    map[int64]error // pts values rejected by Send
	OpenErr error

	Params  encoder.Params
	Opened  bool
	Closed  int
	Drained bool
	Sent    []int64

	emitted int
	queue   []int64
}

// Factory returns a registry factory that always hands out s
func (s *Scripted) Factory() encoder.Factory {
	return func() encoder.Codec { return s }
}

// Registry returns a registry with s installed for id
func (s *Scripted) Registry(id encoder.CodecID) *encoder.Registry {
	reg := encoder.NewRegistry()
	reg.Register(id, s.Factory())
	return reg
}

// Name identifies the backend in session reports
func (s *Scripted) Name() string {
	return "scripted"
}

func (s *Scripted) Open(p encoder.Params) error {
	if s.OpenErr != nil {
		return s.OpenErr
	}
	s.Params = p
	s.Opened = true
	return nil
}

func (s *Scripted) Send(f *frame.Frame, pts int64) ([]encoder.Packet, error) {
	s.Sent = append(s.Sent, pts)
	if err, ok := s.Fail[pts]; ok {
		return nil, err
	}

	s.queue = append(s.queue, pts)
	if len(s.queue) <= s.Delay {
		return nil, nil
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return []encoder.Packet{s.packet(next)}, nil
}

func (s *Scripted) Drain() ([]encoder.Packet, error) {
	s.Drained = true
	packets := make([]encoder.Packet, 0, len(s.queue))
	for _, pts := range s.queue {
		packets = append(packets, s.packet(pts))
	}
	s.queue = nil
	return packets, nil
}

func (s *Scripted) Close() error {
	s.Closed++
	return nil
}

func (s *Scripted) packet(pts int64) encoder.Packet {
	key := s.emitted == 0 || (s.Params.GOPSize > 0 && s.emitted%s.Params.GOPSize == 0)
	s.emitted++

	payload := AccessUnit(key, pts)
	return encoder.Packet{
		Payload:  payload,
		Size:     len(payload),
		PTS:      pts,
		DTS:      pts,
		Keyframe: key,
	}
}

// AccessUnit builds a minimal Annex B access unit. Keyframes carry parameter
// sets and an IDR slice, other frames a single non-IDR slice.
func AccessUnit(key bool, pts int64) []byte {
	tag := 0x80 | byte(pts&0x7f)
	if key {
		return []byte{
			0, 0, 0, 1, 0x67, 0x42, 0xc0, 0x1e, 0xd9,
			0, 0, 0, 1, 0x68, 0xce, 0x3c, 0x80,
			0, 0, 0, 1, 0x65, 0x88, 0x84, tag,
		}
	}
	return []byte{0, 0, 0, 1, 0x41, 0x9a, 0x24, tag}
}
