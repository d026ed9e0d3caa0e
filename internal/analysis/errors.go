package analysis

import "fmt"

// EmptyDatasetError is returned when no rows survive cleaning.
type EmptyDatasetError struct {
	Source string
}

func (e *EmptyDatasetError) Error() string {
	if e == nil || e.Source == "" {
		return "no valid rows to analyze"
	}
	return fmt.Sprintf("%s: no valid rows to analyze", e.Source)
}
