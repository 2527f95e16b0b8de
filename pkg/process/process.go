package process

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"embedvalkey/pkg/conf"
	"embedvalkey/pkg/installation"
	"embedvalkey/pkg/log"
	"embedvalkey/pkg/prom"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
)

// precondition errors
var (
	ErrBinaryNotFound      = installation.ErrBinaryNotFound
	ErrBinaryNotExecutable = installation.ErrBinaryNotExecutable
	ErrWorkingDirNotFound  = installation.ErrDirNotFound
	ErrNotADirectory       = installation.ErrNotADirectory
)

// startup errors
var (
	ErrTerminatedUnexpectedly = errors.New("server process terminated unexpectedly")
	ErrNotReady               = errors.New("server process did not become ready")
)

const (
	// ReadyPattern is matched case-insensitively against stdout lines.
	ReadyPattern = "ready to accept connections"
	// ConfFileName is written into the working directory before each start.
	ConfFileName = "valkey.conf"
	// DefaultMaxWait bounds readiness waits and graceful stops.
	DefaultMaxWait = 10 * time.Second

	waitDelay = 5 * time.Second
)

// State of a Process.
type State int32

// process states
const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

var stateNames = [...]string{
	Stopped:  "stopped",
	Starting: "starting",
	Running:  "running",
	Stopping: "stopping",
}

func (s State) String() string {
	if s < Stopped || s > Stopping {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

// Process owns one server subprocess. Start and Stop are serialized and
// the same Process may be started again after it was stopped.
type Process struct {
	id          string
	inst        *installation.Installation
	workDir     string
	conf        *conf.Conf
	args        []string
	sentinel    bool
	stdoutLevel log.Level
	stderrLevel log.Level
	registry    *Registry

	lock    sync.Mutex
	state   int32
	ready   int32
	pid     int32
	cmd     *exec.Cmd
	exited  chan struct{}
	exitErr error
	readers sync.WaitGroup
}

// New validates inst and the working directory and returns a stopped
// process. Without WithWorkingDir a temporary directory is created below the
// installation directory.
func New(inst *installation.Installation, opts ...Option) (*Process, error) {
	if inst == nil {
		return nil, errors.New("installation must not be nil")
	}
	p := &Process{
		id:          uuid.New(),
		inst:        inst,
		stdoutLevel: log.DebugLevel,
		stderrLevel: log.ErrorLevel,
		registry:    DefaultRegistry,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = DefaultRegistry
	}
	if err := installation.CheckBinary(inst.BinaryPath); err != nil {
		return nil, err
	}
	if p.workDir == "" {
		if err := installation.CheckDir(inst.Dir); err != nil {
			return nil, err
		}
		dir, err := os.MkdirTemp(inst.Dir, tempDirPattern(inst))
		if err != nil {
			return nil, errors.Wrapf(err, "create working dir in %s", inst.Dir)
		}
		p.workDir = dir
	} else if err := installation.CheckDir(p.workDir); err != nil {
		return nil, err
	}
	if p.conf == nil {
		p.conf = conf.Default()
	}
	return p, nil
}

func tempDirPattern(inst *installation.Installation) string {
	dist := strings.ToLower(strings.ReplaceAll(inst.Distribution.String(), " ", "-"))
	return fmt.Sprintf("%s-%s-%s-", dist, inst.Version, inst.OS)
}

// Start launches the subprocess. If awaitReady is set it blocks until the
// server logs that it accepts connections, the subprocess exits, or maxWait
// passes; on failure the subprocess is killed and the process is stopped
// again. Starting an active process only logs a warning.
func (p *Process) Start(awaitReady bool, maxWait time.Duration) (err error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.State() != Stopped {
		log.Warnf("%s is already active, not starting it again", p)
		return nil
	}
	p.setState(Starting)
	defer func() {
		if err != nil {
			p.setState(Stopped)
		}
	}()

	confPath, err := filepath.Abs(filepath.Join(p.workDir, ConfFileName))
	if err != nil {
		return errors.Wrapf(err, "resolve conf path in %s", p.workDir)
	}
	if err = conf.WriteFile(confPath, p.conf); err != nil {
		prom.ProcessStartFailed(p.dist(), "conf")
		return
	}

	args := []string{confPath}
	if p.sentinel {
		args = append(args, "--sentinel")
	}
	args = append(args, p.args...)

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd := exec.Command(p.inst.BinaryPath, args...)
	cmd.Dir = p.workDir
	cmd.Stdout = outW
	cmd.Stderr = errW
	cmd.WaitDelay = waitDelay

	launched := time.Now()
	if err = cmd.Start(); err != nil {
		outW.Close()
		errW.Close()
		prom.ProcessStartFailed(p.dist(), "launch")
		return errors.Wrapf(err, "launch %s", p.inst.BinaryPath)
	}
	log.Infof("started %s %v in %s", p.inst.BinaryPath, args, p.workDir)

	p.cmd = cmd
	atomic.StoreInt32(&p.pid, int32(cmd.Process.Pid))
	atomic.StoreInt32(&p.ready, 0)
	p.exited = make(chan struct{})
	p.exitErr = nil
	ready := make(chan struct{})

	p.readers.Add(2)
	go p.consume(outR, "stdout", p.stdoutLevel, ready)
	go p.consume(errR, "stderr", p.stderrLevel, nil)
	go func(exited chan struct{}) {
		werr := cmd.Wait()
		p.exitErr = werr
		outW.Close()
		errW.Close()
		close(exited)
	}(p.exited)

	p.registry.add(p)

	if awaitReady {
		if err = p.awaitReady(ready, maxWait); err != nil {
			p.kill()
			p.readers.Wait()
			p.registry.remove(p)
			atomic.StoreInt32(&p.pid, 0)
			return err
		}
		prom.ReadyTime(p.dist(), time.Since(launched).Seconds())
	}
	p.setState(Running)
	prom.ProcessStarted(p.dist())
	return nil
}

func (p *Process) awaitReady(ready <-chan struct{}, maxWait time.Duration) error {
	timer := time.NewTimer(maxWait)
	defer timer.Stop()
	select {
	case <-ready:
		return nil
	case <-p.exited:
		prom.ProcessStartFailed(p.dist(), "terminated")
		return errors.Wrapf(ErrTerminatedUnexpectedly, "%s exited with %v", p, p.exitErr)
	case <-timer.C:
		prom.ProcessStartFailed(p.dist(), "not_ready")
		return errors.Wrapf(ErrNotReady, "%s not ready within %s", p, maxWait)
	}
}

// Stop terminates the subprocess. Unless forcibly, SIGTERM is sent first and
// the kill only follows after maxWait. Stopping an inactive process only
// logs a warning.
func (p *Process) Stop(forcibly bool, maxWait time.Duration, removeWorkingDir bool) (err error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.State() != Running {
		log.Warnf("%s is not active, nothing to stop", p)
		return nil
	}
	p.setState(Stopping)

	if forcibly {
		p.kill()
	} else {
		p.terminate(maxWait)
	}
	p.readers.Wait()
	log.Infof("stopped %s", p)

	if removeWorkingDir {
		if rerr := os.RemoveAll(p.workDir); rerr != nil {
			err = errors.Wrapf(rerr, "remove working dir %s", p.workDir)
		}
	}
	atomic.StoreInt32(&p.ready, 0)
	atomic.StoreInt32(&p.pid, 0)
	p.registry.remove(p)
	p.setState(Stopped)
	prom.ProcessStopped(p.dist())
	return
}

// Close stops the process gracefully, keeping the working directory.
func (p *Process) Close() error {
	return p.Stop(false, DefaultMaxWait, false)
}

func (p *Process) terminate(maxWait time.Duration) {
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Debugf("%s: could not send SIGTERM (%v), killing", p, err)
		p.kill()
		return
	}
	timer := time.NewTimer(maxWait)
	defer timer.Stop()
	select {
	case <-p.exited:
	case <-timer.C:
		log.Warnf("%s did not exit within %s, killing", p, maxWait)
		p.kill()
	}
}

func (p *Process) kill() {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Debugf("%s: kill failed: %v", p, err)
	}
	<-p.exited
}

// consume logs every line of r. The stdout consumer closes ready on the
// first line matching ReadyPattern.
func (p *Process) consume(r io.Reader, stream string, lv log.Level, ready chan struct{}) {
	defer p.readers.Done()
	prefix := fmt.Sprintf("[%s v%s - pid: %d - %s]", p.inst.Distribution, p.inst.Version, p.Pid(), stream)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		log.Logf(lv, "%s %s", prefix, line)
		if ready != nil && strings.Contains(strings.ToLower(line), ReadyPattern) {
			atomic.StoreInt32(&p.ready, 1)
			close(ready)
			ready = nil
		}
	}
	if err := sc.Err(); err != nil {
		log.Debugf("%s read failed: %v", prefix, err)
		// keep draining so the writer side never blocks
		_, _ = io.Copy(io.Discard, r)
	}
}

func (p *Process) setState(s State) {
	atomic.StoreInt32(&p.state, int32(s))
}

func (p *Process) dist() string {
	return p.inst.Distribution.String()
}

// State returns the current state.
func (p *Process) State() State {
	return State(atomic.LoadInt32(&p.state))
}

// Active reports whether the process was started and not stopped since.
func (p *Process) Active() bool {
	return p.State() == Running
}

// Ready reports whether the server logged that it accepts connections.
func (p *Process) Ready() bool {
	return atomic.LoadInt32(&p.ready) == 1
}

// ID returns a unique id of this process object.
func (p *Process) ID() string {
	return p.id
}

// Pid returns the OS process id, or 0 when not running.
func (p *Process) Pid() int {
	return int(atomic.LoadInt32(&p.pid))
}

// WorkingDir returns the directory the subprocess runs in.
func (p *Process) WorkingDir() string {
	return p.workDir
}

// Conf returns the configuration.
func (p *Process) Conf() *conf.Conf {
	return p.conf
}

// Installation returns the installation the binary comes from.
func (p *Process) Installation() *installation.Installation {
	return p.inst
}

func (p *Process) String() string {
	mode := "server"
	if p.sentinel {
		mode = "sentinel"
	}
	port, _ := p.conf.Port()
	return fmt.Sprintf("%s %s v%s on port %d (pid %d)", p.inst.Distribution, mode, p.inst.Version, port, p.Pid())
}
