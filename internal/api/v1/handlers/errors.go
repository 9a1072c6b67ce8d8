// Package handlers provides HTTP request handling
package handlers

// Common error messages
const (
	ErrMsgInvalidParams    = "Invalid parameters"
	ErrMsgInvalidReqFormat = "Invalid request format"
)

// User error messages
const (
	ErrMsgUsernameRequired   = "Username is required"
	ErrMsgPasswordTooShort   = "Password must be at least 6 characters"
	ErrMsgUsernameTaken      = "Username already exists"
	ErrMsgInvalidCredentials = "Invalid username or password"
	ErrMsgCreateUserFailed   = "Failed to create user"
	ErrMsgDeleteUserFailed   = "Failed to delete user"
	ErrMsgUserIDRequired     = "User id is required"
)

// Job error messages
const (
	ErrMsgJobIDRequired    = "Job id is required"
	ErrMsgJobNotFound      = "Job not found"
	ErrMsgJobForbidden     = "Job belongs to another user"
	ErrMsgNoImageProvided  = "No image file provided"
	ErrMsgInvalidFileType  = "Invalid file type. Allowed: PNG, JPG, JPEG, GIF, WEBP"
	ErrMsgFileTooLarge     = "File too large"
	ErrMsgNotAnImage       = "File content is not a supported image"
	ErrMsgInvalidStageName = "Invalid stage name"
	ErrMsgSubmitJobFailed  = "Failed to submit job"
	ErrMsgListJobsFailed   = "Failed to list jobs"
	ErrMsgGetJobFailed     = "Failed to get job"
)
