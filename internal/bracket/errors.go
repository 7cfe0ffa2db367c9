package bracket

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidState         = errors.New("invalid state")
	ErrWriteConflict        = errors.New("write conflict")
	ErrConfigurationInvalid = errors.New("configuration invalid")
	ErrNoMatchAvailable     = errors.New("no match available")
)
