package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrLocationUnsupported means the NWS points lookup answered 404: the
	// coordinate is outside the API's coverage and no alerts can be produced.
	ErrLocationUnsupported = errors.New("location outside supported coverage area: alerts unavailable")

	// ErrNotFound is returned by stores when a site or snapshot does not exist.
	ErrNotFound = errors.New("not found")
)

// Upstream fetch stages, used as the Stage of an UpstreamError and as a metric label.
const (
	StagePoint    = "point"
	StageForecast = "forecast"
	StageGrid     = "gridpoint"
)

// UpstreamError is any failed call to the weather API other than a points 404:
// a non-2xx status, a transport failure, a timeout, or an undecodable body.
type UpstreamError struct {
	Stage      string
	StatusCode int
	Status     string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("weather api %s: status %d %s", e.Stage, e.StatusCode, e.Status)
	}
	return fmt.Sprintf("weather api %s: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// PersistenceError wraps a storage read or write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError rejects a malformed site before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
