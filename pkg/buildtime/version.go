package buildtime

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// VERSION returns the SDK version stamped into every new document.
func VERSION() string {
	return strings.TrimSpace(version)
}
