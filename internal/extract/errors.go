package extract

import (
	"errors"
	"fmt"
)

// UnsupportedFormatError reports a file extension no adapter claims.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document format %q", e.Ext)
}

// ExtractionError wraps a read or parse failure for a single document.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsUnsupported reports whether err means the format has no adapter.
// Batch ingestion uses it to skip a file and keep going.
func IsUnsupported(err error) bool {
	var ufe *UnsupportedFormatError
	return errors.As(err, &ufe)
}
