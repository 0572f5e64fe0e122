package semver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("9.12.1")
	require.NoError(t, err)
	require.Equal(t, SemanticVersion{Major: 9, Minor: 12, Patch: 1}, v)
	require.Equal(t, "9.12.1", v.String())
}

func TestParseVersionPreReleaseAndBuild(t *testing.T) {
	v, err := ParseVersion("9.13.2-beta.1+build.7")
	require.NoError(t, err)
	require.Equal(t, uint64(9), v.Major)
	require.Equal(t, uint64(13), v.Minor)
	require.Equal(t, uint64(2), v.Patch)
	require.Equal(t, "beta.1", v.PreRelease)
	require.Equal(t, "build.7", v.BuildMetadata)
	require.True(t, v.IsPreRelease())
	require.Equal(t, "9.13.2-beta.1+build.7", v.String())
}

func TestParseVersionRejectsTwoComponent(t *testing.T) {
	_, err := ParseVersion("9.12")
	require.Error(t, err)
	require.IsType(t, &ParseError{}, err)
}

func TestParseVersionRejectsGarbage(t *testing.T) {
	_, err := ParseVersion("not-a-version")
	require.Error(t, err)
}

func TestCompare(t *testing.T) {
	low := SemanticVersion{Major: 9, Minor: 12, Patch: 0}
	high := SemanticVersion{Major: 9, Minor: 14, Patch: 0}
	require.True(t, low.LessThan(high))
	require.True(t, high.GreaterThan(low))
	require.True(t, high.GreaterOrEqual(low))
	require.True(t, low.Equal(low))
	require.False(t, low.Equal(high))
}

func TestCompareOrdersReleaseAbovePreRelease(t *testing.T) {
	pre := SemanticVersion{Major: 9, Minor: 13, Patch: 2, PreRelease: "beta.1"}
	release := SemanticVersion{Major: 9, Minor: 13, Patch: 2}
	require.True(t, pre.LessThan(release))
}
