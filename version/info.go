package version

import "fmt"

type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%02v.%02v.%02v", v.Major, v.Minor, v.Patch)
}

// Name identifies the storage engine in logs and diagnostics.
const Name = "tachyon"

// Current is the version of the storage engine.
var Current = Version{Major: 0, Minor: 1, Patch: 0}
