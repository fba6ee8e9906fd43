package install

import (
	"errors"
	"fmt"
	"strings"

	"github.com/macropower/rulebook/pkg/resolve"
)

var (
	// ErrPartialApply is wrapped by [*PartialApplyError].
	ErrPartialApply = errors.New("plan partially applied")
	// ErrWorkspaceNotWritable is wrapped by [*WorkspaceNotWritableError].
	ErrWorkspaceNotWritable = errors.New("workspace not writable")
	// ErrChecksumMismatch is returned when a payload does not match the
	// checksum declared in the catalog.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// PartialApplyError is returned when a step of a plan fails. Completed steps
// remain applied; re-running the same plan resumes at the failed step.
type PartialApplyError struct {
	Err       error
	Failed    resolve.Step
	Completed []resolve.Step
	Pending   []resolve.Step
}

func (e *PartialApplyError) Error() string {
	completed := make([]string, 0, len(e.Completed))
	for _, s := range e.Completed {
		completed = append(completed, s.String())
	}

	msg := fmt.Sprintf("%v: %s failed: %v", ErrPartialApply, e.Failed, e.Err)
	if len(completed) > 0 {
		msg += fmt.Sprintf(" (completed: %s)", strings.Join(completed, ", "))
	}

	return msg
}

func (e *PartialApplyError) Unwrap() []error {
	return []error{ErrPartialApply, e.Err}
}

// WorkspaceNotWritableError is returned when the workspace rules directory
// or state file cannot be written.
type WorkspaceNotWritableError struct {
	Err  error
	Root string
}

func (e *WorkspaceNotWritableError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrWorkspaceNotWritable, e.Root, e.Err)
}

func (e *WorkspaceNotWritableError) Unwrap() []error {
	return []error{ErrWorkspaceNotWritable, e.Err}
}
