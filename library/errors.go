package library

import "errors"

// Sentinel errors surfaced by the store and the borrowing workflow.
// The LibraryManager façade maps these to human-readable messages; none
// of them is fatal to the process.
var (
	ErrNotFound            = errors.New("not found")
	ErrNoCopiesAvailable   = errors.New("no copies available")
	ErrDuplicateActiveLoan = errors.New("already borrowed and not yet returned")
	ErrAlreadyReturned     = errors.New("already returned")
	ErrRenewalLimitReached = errors.New("renewal limit reached")
	ErrOverdue             = errors.New("loan is overdue")
	ErrUsernameTaken       = errors.New("username already exists")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrValidation          = errors.New("validation failed")
)
