package process

import (
	"embedvalkey/pkg/conf"
	"embedvalkey/pkg/log"
)

// Option configures a Process.
type Option func(*Process)

// WithWorkingDir runs the process in dir, which must exist.
func WithWorkingDir(dir string) Option {
	return func(p *Process) { p.workDir = dir }
}

// WithConf sets the configuration written before each start.
func WithConf(c *conf.Conf) Option {
	return func(p *Process) { p.conf = c }
}

// WithArgs appends extra command line arguments.
func WithArgs(args ...string) Option {
	return func(p *Process) { p.args = append(p.args, args...) }
}

// WithSentinel launches the binary in sentinel mode.
func WithSentinel() Option {
	return func(p *Process) { p.sentinel = true }
}

// WithStdoutLevel sets the level stdout lines are logged at.
func WithStdoutLevel(lv log.Level) Option {
	return func(p *Process) { p.stdoutLevel = lv }
}

// WithStderrLevel sets the level stderr lines are logged at.
func WithStderrLevel(lv log.Level) Option {
	return func(p *Process) { p.stderrLevel = lv }
}

// WithRegistry tracks the process in r instead of DefaultRegistry. A nil r
// keeps DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(p *Process) { p.registry = r }
}
