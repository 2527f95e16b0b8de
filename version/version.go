package version

import "fmt"

// Define embedvalkey version consts
const (
	Major = 0
	Minor = 3
	Patch = 0
)

var vstr = fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)

// String returns the version as major.minor.patch.
func String() string {
	return vstr
}
