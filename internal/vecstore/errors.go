package vecstore

import (
	"errors"
	"fmt"
)

// DimensionMismatchError means a vector's length disagrees with the store's
// fixed dimension. Always fatal to the call, never retried.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: store holds %d, got %d", e.Want, e.Got)
}

// IsDimensionMismatch reports whether err wraps a DimensionMismatchError.
func IsDimensionMismatch(err error) bool {
	var de *DimensionMismatchError
	return errors.As(err, &de)
}
