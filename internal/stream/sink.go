package stream

import (
	"bufio"
	"fmt"
	"os"
)

// Sink is an append-only byte destination
type Sink interface {
	Append(p []byte) (int, error)
	Flush() error
	Close() error
}

// OpenError reports an output that could not be opened for writing
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open output %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// FileSink writes to a file through a buffered writer. Flush pushes the
// buffer to the operating system and syncs the file.
type FileSink struct {
	file *os.File
	w    *bufio.Writer
	sync bool
}

// OpenFileSink creates or truncates path
func OpenFileSink(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	return &FileSink{file: f, w: bufio.NewWriterSize(f, 256*1024)}, nil
}

// SetSync controls whether Flush also calls fsync
func (s *FileSink) SetSync(sync bool) {
	s.sync = sync
}

func (s *FileSink) Append(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *FileSink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.sync {
		return s.file.Sync()
	}
	return nil
}

func (s *FileSink) Close() error {
	flushErr := s.w.Flush()
	closeErr := s.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
