package versions

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Compare orders two entity versions. Both are compared as semantic versions when
// they parse, otherwise as plain strings. The result is -1, 0 or +1.
func Compare(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return va.Compare(vb)
}

// IsNewerVersion reports whether candidate is strictly newer than current
func IsNewerVersion(candidate, current string) bool {
	return Compare(candidate, current) > 0
}
