package core

// Logger is any structured error reporter the app logs through.
// expected args fmt: error | map[string]interface{} | user.User
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
