package vigilo

import (
	"os"
)

// DebugEnabled controls whether or not debugging is enabled for Vigilo. It is
// set automatically based on the VIGILO_DEBUG environment variable.
var DebugEnabled bool

func init() {
	// Check whether or not debugging should be enabled.
	DebugEnabled = os.Getenv("VIGILO_DEBUG") == "1"
}
