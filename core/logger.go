package core

// Logger is any leveled logging service.
// args may carry wrapped errors, extra context maps or the acting user;
// implementations decide how to report each.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
