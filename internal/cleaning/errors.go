package cleaning

import (
	"errors"
	"fmt"
)

var (
	errUnparseableDate = errors.New("unrecognised date")
	errNotNumeric      = errors.New("not a number")
	errNegative        = errors.New("negative value")
	errNotInteger      = errors.New("not a whole number")
	errMissingValue    = errors.New("missing value")
)

// DataFormatError reports a value that no repair rule can fix.
type DataFormatError struct {
	// Row is the 1-based data row number in the source file.
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *DataFormatError) Error() string {
	if e == nil {
		return "data format error"
	}
	return fmt.Sprintf("row %d: column %s: invalid value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *DataFormatError) Unwrap() error { return e.Err }
