package dataset

import (
	"fmt"
	"strings"
)

// MissingColumnError indicates the input lacks one or more required columns.
type MissingColumnError struct {
	Source  string
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: missing required column(s): %s", e.Source, strings.Join(e.Columns, ", "))
}
