package types

// RunMode is the mode the process runs in
type RunMode string

const (
	// ModeLocal runs the API server with local developer defaults
	ModeLocal RunMode = "local"
	// ModeAPI runs the API server only
	ModeAPI RunMode = "api"
)

// LogLevel is the level of the log
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
