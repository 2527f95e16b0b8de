package log

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level of severity.
type Level int

// log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

// String implementation.
func (l Level) String() string {
	if l < DebugLevel || l > ErrorLevel {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel parses a level name, case-insensitive.
func ParseLevel(s string) (Level, error) {
	for lv, name := range levelNames {
		if strings.EqualFold(name, s) {
			return Level(lv), nil
		}
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// Config log config.
type Config struct {
	Stdout bool   `toml:"stdout"`
	Debug  bool   `toml:"debug"`
	JSON   bool   `toml:"json"`
	Log    string `toml:"log"`
	LogVL  int    `toml:"log_vl"`
}

var (
	mu    sync.RWMutex
	h     Handler
	debug int32
)

// Init log.
func Init(c *Config) (b bool) {
	var hs []Handler

	if c == nil {
		c = &Config{}
	}
	if c.JSON {
		hs = append(hs, NewZerologHandler(nil))
	} else if c.Debug || c.Stdout {
		hs = append(hs, NewConsoleHandler(os.Stdout))
	}
	if c.Log != "" {
		hs = append(hs, NewFileHandler(c.Log))
	}
	if c.LogVL != 0 {
		DefaultVerboseLevel = c.LogVL
	}
	SetDebug(c.Debug)
	if len(hs) > 0 {
		setHandler(Handlers(hs))
		b = true
	}
	return
}

// InitHandle with log handle.
func InitHandle(hs ...Handler) {
	setHandler(Handlers(hs))
}

func setHandler(nh Handler) {
	mu.Lock()
	h = nh
	mu.Unlock()
}

func handler() Handler {
	mu.RLock()
	defer mu.RUnlock()
	return h
}

// SetDebug switches emitting of debug level messages.
func SetDebug(on bool) {
	if on {
		atomic.StoreInt32(&debug, 1)
	} else {
		atomic.StoreInt32(&debug, 0)
	}
}

// Debugf logs a message at the debug log level.
func Debugf(format string, args ...interface{}) {
	logf(DebugLevel, format, args...)
}

// Infof logs a message at the info log level.
func Infof(format string, args ...interface{}) {
	logf(InfoLevel, format, args...)
}

// Warnf logs a message at the warning log level.
func Warnf(format string, args ...interface{}) {
	logf(WarnLevel, format, args...)
}

// Errorf logs a message at the error log level.
func Errorf(format string, args ...interface{}) {
	logf(ErrorLevel, format, args...)
}

// Logf logs a message at the given level.
func Logf(lv Level, format string, args ...interface{}) {
	logf(lv, format, args...)
}

// Enabled reports whether a message at lv would reach a handler.
func Enabled(lv Level) bool {
	if handler() == nil {
		return false
	}
	return lv != DebugLevel || atomic.LoadInt32(&debug) == 1
}

func logf(lv Level, format string, args ...interface{}) {
	if !Enabled(lv) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	handler().Log(lv, msg)
}

// Close close resource.
func Close() (err error) {
	if hd := handler(); hd != nil {
		err = hd.Close()
	}
	return
}
