package log

// Verbose .
type Verbose bool

// DefaultVerboseLevel default Verbose level.
var DefaultVerboseLevel = 0

// V enable verbose log.
// v must be more than 0.
func V(v int) Verbose {
	return Verbose(v <= DefaultVerboseLevel)
}

// Infof logs a message at the info log level.
func (v Verbose) Infof(format string, args ...interface{}) {
	if v {
		logf(InfoLevel, format, args...)
	}
}

// Warnf logs a message at the warning log level.
func (v Verbose) Warnf(format string, args ...interface{}) {
	if v {
		logf(WarnLevel, format, args...)
	}
}
