package catalogsync

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteUnavailable is wrapped by [*RemoteUnavailableError].
	ErrRemoteUnavailable = errors.New("remote catalog unavailable")
	// ErrSchemaVersionMismatch is wrapped by [*SchemaVersionMismatchError].
	ErrSchemaVersionMismatch = errors.New("schema version mismatch")
)

// RemoteUnavailableError is returned when the remote catalog could not be
// fetched. The local catalog is left unchanged.
type RemoteUnavailableError struct {
	Err    error
	Source string
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrRemoteUnavailable, e.Source, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() []error {
	return []error{ErrRemoteUnavailable, e.Err}
}

// SchemaVersionMismatchError is returned when the remote catalog uses a
// schema major version newer than this build understands.
type SchemaVersionMismatchError struct {
	Remote    string
	Supported string
}

func (e *SchemaVersionMismatchError) Error() string {
	return fmt.Sprintf("%v: remote catalog schema %s is newer than supported %s",
		ErrSchemaVersionMismatch, e.Remote, e.Supported)
}

func (e *SchemaVersionMismatchError) Unwrap() error {
	return ErrSchemaVersionMismatch
}
