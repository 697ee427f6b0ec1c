package jobs

import "errors"

var (
	// ErrNotFound reports that no job row exists for the requested id.
	ErrNotFound = errors.New("job not found")

	// ErrClaimConflict reports that a claim lost the race: the job was not in
	// a claimable state when the guarded update ran.
	ErrClaimConflict = errors.New("job not claimable")

	// ErrTerminal reports an attempted transition out of an absorbing state.
	ErrTerminal = errors.New("job already in terminal state")

	// ErrFixUnavailable reports a remediation request against a job whose
	// primary analysis has not completed.
	ErrFixUnavailable = errors.New("remediation requires a completed job")
)
