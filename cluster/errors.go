package cluster

import (
	"fmt"

	"github.com/pkg/errors"
)

// precondition errors
var (
	ErrNoSentinels = errors.New("at least one sentinel is required")
	ErrNoServers   = errors.New("at least one server is required")
	ErrNoShards    = errors.New("at least one shard is required")
)

// SetupError is returned when a sharded cluster started its nodes but could
// not link them. The nodes have been stopped again; Rollback holds the
// failure of that stop, if any.
type SetupError struct {
	Cause    error
	Rollback error
}

func (e *SetupError) Error() string {
	if e.Rollback != nil {
		return fmt.Sprintf("cluster setup failed: %v (rollback failed: %v)", e.Cause, e.Rollback)
	}
	return fmt.Sprintf("cluster setup failed: %v", e.Cause)
}

// Unwrap returns the setup failure.
func (e *SetupError) Unwrap() error {
	return e.Cause
}
