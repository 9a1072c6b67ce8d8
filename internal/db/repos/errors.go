package repos

import "errors"

// Sentinel errors shared by the repositories. Handlers translate these into
// HTTP statuses, so ownership failures must stay distinguishable from
// missing rows without leaking the job itself.
var (
	// ErrJobNotFound indicates no job exists with the requested ID
	ErrJobNotFound = errors.New("job not found")
	// ErrForbidden indicates the job exists but belongs to another owner
	ErrForbidden = errors.New("job belongs to another owner")
	// ErrUserNotFound indicates no user matched the lookup
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken indicates a registration attempt with an existing username
	ErrUsernameTaken = errors.New("username already exists")
)
