package encoder

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// CodecID names a compression format
type CodecID string

const (
	H264 CodecID = "h264"
	HEVC CodecID = "hevc"
)

// ParseCodecID maps a codec name to a CodecID
func ParseCodecID(s string) (CodecID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "h264", "avc":
		return H264, nil
	case "hevc", "h265":
		return HEVC, nil
	}
	return "", fmt.Errorf("unknown codec: %q (expected h264 or hevc)", s)
}

// Factory creates a fresh backend for one session
type Factory func() Codec

// Registry maps codec IDs to backend factories
type Registry struct {
	mu        sync.RWMutex
	factories map[CodecID]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[CodecID]Factory)}
}

// Register installs a backend factory, replacing any previous one for id
func (r *Registry) Register(id CodecID, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = f
}

// Lookup returns the factory registered for id
func (r *Registry) Lookup(id CodecID) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[id]
	return f, ok
}

// Codecs lists registered codec IDs in name order
func (r *Registry) Codecs() []CodecID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]CodecID, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
