package stream

import "bytes"

// MemorySink collects output in memory. A positive ShortAfter truncates every
// Append once that many bytes have been accepted.
type MemorySink struct {
	buf        bytes.Buffer
	ShortAfter int
	Flushes    int
	Closed     bool
}

func (m *MemorySink) Append(p []byte) (int, error) {
	if m.ShortAfter > 0 {
		room := m.ShortAfter - m.buf.Len()
		if room < 0 {
			room = 0
		}
		if room < len(p) {
			p = p[:room]
		}
	}
	return m.buf.Write(p)
}

func (m *MemorySink) Flush() error {
	m.Flushes++
	return nil
}

func (m *MemorySink) Close() error {
	m.Closed = true
	return nil
}

// Bytes returns everything appended so far
func (m *MemorySink) Bytes() []byte {
	return m.buf.Bytes()
}
