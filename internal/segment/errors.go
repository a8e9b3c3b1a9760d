package segment

import (
	"errors"
	"fmt"
)

// SegmentationError is a fatal structural failure: the input cannot be read
// or yields no usable sections. The pipeline aborts on it rather than
// degrading.
type SegmentationError struct {
	Path    string
	Message string
	Err     error
}

func (e *SegmentationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("segmentation failed for %s: %s: %v", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("segmentation failed for %s: %s", e.Path, e.Message)
}

func (e *SegmentationError) Unwrap() error { return e.Err }

// IsSegmentationError reports whether err wraps a SegmentationError.
func IsSegmentationError(err error) bool {
	var se *SegmentationError
	return errors.As(err, &se)
}
