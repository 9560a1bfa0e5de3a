package queue

import "errors"

// ErrJobNotFound is returned when no queue job exists for the given id or
// meeting id.
var ErrJobNotFound = errors.New("job not found")
