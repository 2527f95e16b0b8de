package installation

import (
	"fmt"
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// Distribution is the kind of server distribution an installation holds.
type Distribution int

// distributions
const (
	Valkey Distribution = iota
	Redis
	Memurai
	MemuraiForValkey
)

var distributionNames = map[Distribution]string{
	Valkey:           "Valkey",
	Redis:            "Redis",
	Memurai:          "Memurai",
	MemuraiForValkey: "Memurai for Valkey",
}

// String returns the display name.
func (d Distribution) String() string {
	if n, ok := distributionNames[d]; ok {
		return n
	}
	return fmt.Sprintf("Distribution(%d)", int(d))
}

// errors
var (
	ErrBlankVersion        = errors.New("version must not be blank")
	ErrDirNotFound         = errors.New("installation directory does not exist")
	ErrNotADirectory       = errors.New("path is not a directory")
	ErrBinaryNotFound      = errors.New("binary does not exist")
	ErrBinaryNotExecutable = errors.New("binary is not executable")
)

// Installation is a server binary available on the local filesystem.
type Installation struct {
	Version      string
	OS           string
	Arch         string
	Distribution Distribution
	Dir          string
	BinaryPath   string
}

// New returns a validated installation for the host platform.
func New(dist Distribution, version, dir, binary string) (*Installation, error) {
	inst := &Installation{
		Version:      version,
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		Distribution: dist,
		Dir:          dir,
		BinaryPath:   binary,
	}
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

// Validate checks that Dir is a directory and BinaryPath an executable file.
func (i *Installation) Validate() error {
	if i.Version == "" {
		return ErrBlankVersion
	}
	if err := CheckDir(i.Dir); err != nil {
		return err
	}
	return CheckBinary(i.BinaryPath)
}

// Key identifies an installation for caching.
func (i *Installation) Key() Key {
	return Key{Version: i.Version, OS: i.OS, Arch: i.Arch}
}

func (i *Installation) String() string {
	return fmt.Sprintf("%s v%s (%s/%s) at %s", i.Distribution, i.Version, i.OS, i.Arch, i.BinaryPath)
}

// CheckDir returns an error unless path exists and is a directory.
func CheckDir(path string) error {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return errors.Wrapf(ErrDirNotFound, "dir %s", path)
	} else if err != nil {
		return errors.Wrapf(err, "stat dir %s", path)
	}
	if !fi.IsDir() {
		return errors.Wrapf(ErrNotADirectory, "dir %s", path)
	}
	return nil
}

// CheckBinary returns an error unless path is an executable regular file.
func CheckBinary(path string) error {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return errors.Wrapf(ErrBinaryNotFound, "binary %s", path)
	} else if err != nil {
		return errors.Wrapf(err, "stat binary %s", path)
	}
	if fi.IsDir() || !executable(fi) {
		return errors.Wrapf(ErrBinaryNotExecutable, "binary %s", path)
	}
	return nil
}

func executable(fi os.FileInfo) bool {
	if runtime.GOOS == "windows" {
		return true
	}
	return fi.Mode().Perm()&0111 != 0
}

var (
	runtimeOS   = runtime.GOOS
	runtimeArch = runtime.GOARCH
)
