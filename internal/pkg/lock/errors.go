package lock

import "errors"

// Lock-related errors.
var (
	// ErrLockTimeout is returned when a lock cannot be acquired within the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrLeaseHeld is returned when another owner holds a distributed lease.
	ErrLeaseHeld = errors.New("lease held by another owner")

	// ErrLeaseLost is returned when a lease expired or was taken over before refresh.
	ErrLeaseLost = errors.New("lease lost")
)
