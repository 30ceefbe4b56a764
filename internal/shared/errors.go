package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Library errors
	ErrTrackNotFound = fmt.Errorf("track not found")
	ErrNoLocalFile   = fmt.Errorf("track has no local file")
	ErrFileMissing   = fmt.Errorf("local file missing from disk")

	// Judgment errors
	ErrInvalidRating = fmt.Errorf("rating out of range")
	ErrInvalidSource = fmt.Errorf("invalid ownership source")
	ErrEmptyLabel    = fmt.Errorf("empty tag label")

	// Sync errors
	ErrPassActive = fmt.Errorf("a sync pass is already running")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
