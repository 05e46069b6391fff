package vigilo

import (
	"fmt"
)

const (
	// VersionMajor represents the current major version of Vigilo.
	VersionMajor = 0
	// VersionMinor represents the current minor version of Vigilo.
	VersionMinor = 3
	// VersionPatch represents the current patch version of Vigilo.
	VersionPatch = 0
	// VersionTag represents a tag to be appended to the Vigilo version string.
	// It must not contain spaces. If empty, no tag is appended to the version
	// string.
	VersionTag = ""
)

// Version provides a stringified version of the current Vigilo version.
var Version string

// init performs global initialization.
func init() {
	// Compute the stringified version.
	if VersionTag != "" {
		Version = fmt.Sprintf("%d.%d.%d-%s", VersionMajor, VersionMinor, VersionPatch, VersionTag)
	} else {
		Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
	}
}
