package pipeline

import (
	"errors"
	"fmt"
)

// Reason classifies why a launch failed.
type Reason string

const (
	// ReasonMissingDependency: the external tool is absent from PATH, or a
	// required service died before becoming ready.
	ReasonMissingDependency Reason = "missing_dependency"
	// ReasonSpawnFailed: the OS refused to create the process.
	ReasonSpawnFailed Reason = "spawn_failed"
)

// LaunchError aborts the pipeline when a required service cannot start.
type LaunchError struct {
	Service string
	Reason  Reason
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %s: %v", e.Service, e.Reason, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// IsMissingDependency reports whether err is a LaunchError caused by an
// absent required tool.
func IsMissingDependency(err error) bool {
	var le *LaunchError
	return errors.As(err, &le) && le.Reason == ReasonMissingDependency
}

// IsSpawnFailed reports whether err is a LaunchError caused by an OS-level
// spawn failure.
func IsSpawnFailed(err error) bool {
	var le *LaunchError
	return errors.As(err, &le) && le.Reason == ReasonSpawnFailed
}
