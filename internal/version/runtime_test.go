package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMorphTargetThresholdIsPinned(t *testing.T) {
	assert.Equal(t, "5.2.6", MorphTargetExternalBinaries)
}

func TestUsesExternalMorphTargets(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"5.2.6", true},
		{"5.2.7", true},
		{"5.3.0", true},
		{"6.0.0", true},
		// a plain string comparison orders these wrongly
		{"5.10.0", true},
		{"10.0.0", true},
		{"5.2.0", false},
		{"5.2.5", false},
		{"4.9.9", false},
		{"5.2.6-beta.1", false},
		{"v5.2.6", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got, err := UsesExternalMorphTargets(tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAtLeastInvalid(t *testing.T) {
	_, err := AtLeast("not-a-version", "5.2.6")
	assert.Error(t, err)

	_, err = Parse("1.x.y")
	assert.Error(t, err)
}

func TestBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, GetDetailedVersion(), "Platform:")
}
