package constants

// Response titles and status strings shared by handlers.
const (
	DefaultErrorTitle = "Internal Server Error"

	StatusAvailable    = "available"
	StatusInitializing = "initializing"
	StatusFailed       = "failed"
)
