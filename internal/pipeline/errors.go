package pipeline

import "fmt"

// SourceExhaustedError reports a source that ran out of frames before the
// requested count was reached
type SourceExhaustedError struct {
	Requested int
	Delivered int
}

func (e *SourceExhaustedError) Error() string {
	return fmt.Sprintf("source exhausted after %d of %d frames", e.Delivered, e.Requested)
}
