package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// MorphTargetExternalBinaries is the first runtime version that loads
// morph-target data from external delay-loaded binaries. Older runtimes need
// the arrays inlined into the scene document.
const MorphTargetExternalBinaries = "5.2.6"

// Parse parses a runtime version such as "5.2.6" or "v6.0.0-beta.1".
func Parse(v string) (*semver.Version, error) {
	parsed, err := semver.NewVersion(strings.TrimSpace(v))
	if err != nil {
		return nil, fmt.Errorf("invalid runtime version %q: %w", v, err)
	}
	return parsed, nil
}

// AtLeast reports whether v >= threshold using semantic version ordering,
// so "5.10.0" is correctly newer than "5.2.6". An empty v stands for the
// current runtime and always satisfies the threshold.
func AtLeast(v, threshold string) (bool, error) {
	if strings.TrimSpace(v) == "" {
		return true, nil
	}
	have, err := Parse(v)
	if err != nil {
		return false, err
	}
	want, err := Parse(threshold)
	if err != nil {
		return false, err
	}
	return !have.LessThan(want), nil
}

// UsesExternalMorphTargets reports whether the runtime loads morph targets
// from external binaries.
func UsesExternalMorphTargets(runtimeVersion string) (bool, error) {
	return AtLeast(runtimeVersion, MorphTargetExternalBinaries)
}
