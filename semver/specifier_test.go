package semver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func v(major, minor, patch uint64) SemanticVersion {
	return SemanticVersion{Major: major, Minor: minor, Patch: patch}
}

func TestParseSpecifier(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want VersionSpecifier
	}{
		{"empty is AnyRelease", "", AnyRelease()},
		{"star is Any", "*", Any()},
		{"caret is Compatible", "^9.12.0", Compatible(v(9, 12, 0))},
		{"three-component is Exact", "9.12.1", Exact(v(9, 12, 1))},
		{"two-component is MinimumCompatible", "9.12", MinimumCompatible(v(9, 12, 0))},
		{"caret with pre-release", "^9.13.2-beta.1", Compatible(SemanticVersion{Major: 9, Minor: 13, Patch: 2, PreRelease: "beta.1"})},
		{"exact with pre-release", "9.13.2-beta.1", Exact(SemanticVersion{Major: 9, Minor: 13, Patch: 2, PreRelease: "beta.1"})},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseSpecifier(c.in)
			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}
}

func TestParseSpecifierRoundTrips(t *testing.T) {
	for _, in := range []string{"*", "", "^9.12.0", "9.12.1", "9.12"} {
		spec, err := ParseSpecifier(in)
		require.NoError(t, err)
		back, err := ParseSpecifier(spec.String())
		require.NoError(t, err)
		require.Equal(t, spec, back)
	}
}

func TestParseSpecifierRejectsGarbage(t *testing.T) {
	_, err := ParseSpecifier("not-a-version")
	require.Error(t, err)
}

func TestIsSatisfiedBy(t *testing.T) {
	release := v(9, 13, 2)
	pre := SemanticVersion{Major: 9, Minor: 13, Patch: 2, PreRelease: "beta.1"}

	require.True(t, Any().IsSatisfiedBy(release))
	require.True(t, Any().IsSatisfiedBy(pre))

	require.True(t, AnyRelease().IsSatisfiedBy(release))
	require.False(t, AnyRelease().IsSatisfiedBy(pre))

	require.True(t, Exact(release).IsSatisfiedBy(release))
	require.False(t, Exact(release).IsSatisfiedBy(v(9, 13, 3)))

	compat := Compatible(v(9, 5, 0))
	require.True(t, compat.IsSatisfiedBy(v(9, 5, 0)))
	require.True(t, compat.IsSatisfiedBy(v(9, 14, 0)))
	require.False(t, compat.IsSatisfiedBy(v(9, 4, 9)))
	require.False(t, compat.IsSatisfiedBy(v(10, 0, 0)))
	require.False(t, compat.IsSatisfiedBy(SemanticVersion{Major: 9, Minor: 6, Patch: 0, PreRelease: "beta"}))

	compatPre := Compatible(SemanticVersion{Major: 9, Minor: 5, Patch: 0, PreRelease: "beta"})
	require.True(t, compatPre.IsSatisfiedBy(SemanticVersion{Major: 9, Minor: 6, Patch: 0, PreRelease: "beta"}))

	minCompat := MinimumCompatible(v(9, 3, 2))
	require.True(t, minCompat.IsSatisfiedBy(v(9, 3, 2)))
	require.True(t, minCompat.IsSatisfiedBy(v(9, 3, 9)))
	require.False(t, minCompat.IsSatisfiedBy(v(9, 3, 1)))
	require.False(t, minCompat.IsSatisfiedBy(v(9, 4, 0)))
}

func TestPreReleaseDemanded(t *testing.T) {
	require.False(t, PreReleaseDemanded(Any()))
	require.False(t, PreReleaseDemanded(AnyRelease()))
	require.False(t, PreReleaseDemanded(Exact(v(9, 12, 1))))
	require.True(t, PreReleaseDemanded(Exact(SemanticVersion{Major: 9, Minor: 12, Patch: 1, PreRelease: "beta"})))
	require.False(t, PreReleaseDemanded(Compatible(v(9, 12, 1))))
	require.True(t, PreReleaseDemanded(Compatible(SemanticVersion{Major: 9, Minor: 12, Patch: 1, PreRelease: "beta"})))
	require.False(t, PreReleaseDemanded(MinimumCompatible(v(9, 12, 0))))
}

// TestIsCompatibleMatrix exercises IsCompatible/Intersect across every pair
// of the five specifier kinds, in both operand orders, including the
// Compatible/MinimumCompatible cross-case that previously only compared
// major versions and ignored minor.
func TestIsCompatibleMatrix(t *testing.T) {
	cases := []struct {
		name          string
		a, b          VersionSpecifier
		wantCompat    bool
		wantIntersect VersionSpecifier // only checked when wantCompat
	}{
		{"any/any", Any(), Any(), true, Any()},
		{"any/anyRelease", Any(), AnyRelease(), true, AnyRelease()},
		{"any/exact", Any(), Exact(v(9, 12, 1)), true, Exact(v(9, 12, 1))},
		{"any/compatible", Any(), Compatible(v(9, 5, 0)), true, Compatible(v(9, 5, 0))},
		{"any/minimumCompatible", Any(), MinimumCompatible(v(9, 3, 2)), true, MinimumCompatible(v(9, 3, 2))},

		{"anyRelease/anyRelease", AnyRelease(), AnyRelease(), true, AnyRelease()},
		{"anyRelease/exact release", AnyRelease(), Exact(v(9, 12, 1)), true, Exact(v(9, 12, 1))},
		{"anyRelease/exact pre-release", AnyRelease(), Exact(SemanticVersion{Major: 9, Minor: 12, Patch: 1, PreRelease: "beta"}), false, nil},
		{"anyRelease/compatible", AnyRelease(), Compatible(v(9, 5, 0)), true, Compatible(v(9, 5, 0))},
		{"anyRelease/minimumCompatible", AnyRelease(), MinimumCompatible(v(9, 3, 2)), true, MinimumCompatible(v(9, 3, 2))},

		{"exact/exact same version", Exact(v(9, 12, 1)), Exact(v(9, 12, 1)), true, Exact(v(9, 12, 1))},
		{"exact/exact different version", Exact(v(9, 12, 1)), Exact(v(9, 12, 2)), false, nil},
		{"exact/compatible admitted", Exact(v(9, 12, 1)), Compatible(v(9, 5, 0)), true, Exact(v(9, 12, 1))},
		{"exact/compatible rejected below", Exact(v(9, 4, 0)), Compatible(v(9, 5, 0)), false, nil},
		{"exact/compatible rejected major", Exact(v(8, 12, 1)), Compatible(v(9, 5, 0)), false, nil},
		{"exact/minimumCompatible admitted", Exact(v(9, 3, 5)), MinimumCompatible(v(9, 3, 2)), true, Exact(v(9, 3, 5))},
		{"exact/minimumCompatible rejected", Exact(v(9, 3, 1)), MinimumCompatible(v(9, 3, 2)), false, nil},

		{"compatible/compatible same major", Compatible(v(9, 2, 0)), Compatible(v(9, 5, 0)), true, Compatible(v(9, 5, 0))},
		{"compatible/compatible different major", Compatible(v(8, 2, 0)), Compatible(v(9, 5, 0)), false, nil},

		// Regression: Compatible's reference minor above MinimumCompatible's
		// pinned minor must be empty, not "compatible via same major".
		{"compatible/minimumCompatible empty (regression)", Compatible(v(9, 5, 0)), MinimumCompatible(v(9, 3, 2)), false, nil},
		{"minimumCompatible/compatible empty (regression, reversed)", MinimumCompatible(v(9, 3, 2)), Compatible(v(9, 5, 0)), false, nil},
		{"compatible/minimumCompatible lower minor admits", Compatible(v(9, 2, 0)), MinimumCompatible(v(9, 3, 2)), true, MinimumCompatible(v(9, 3, 2))},
		{"compatible/minimumCompatible equal minor merges patch", Compatible(v(9, 3, 5)), MinimumCompatible(v(9, 3, 2)), true, MinimumCompatible(v(9, 3, 5))},
		{"compatible/minimumCompatible equal minor merges patch (reversed ref)", Compatible(v(9, 3, 2)), MinimumCompatible(v(9, 3, 5)), true, MinimumCompatible(v(9, 3, 5))},
		{"compatible/minimumCompatible different major", Compatible(v(8, 3, 0)), MinimumCompatible(v(9, 3, 2)), false, nil},

		{"minimumCompatible/minimumCompatible same major+minor", MinimumCompatible(v(9, 3, 2)), MinimumCompatible(v(9, 3, 5)), true, MinimumCompatible(v(9, 3, 5))},
		{"minimumCompatible/minimumCompatible different minor", MinimumCompatible(v(9, 2, 2)), MinimumCompatible(v(9, 3, 5)), false, nil},
		{"minimumCompatible/minimumCompatible different major", MinimumCompatible(v(8, 3, 2)), MinimumCompatible(v(9, 3, 5)), false, nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.wantCompat, IsCompatible(c.a, c.b), "IsCompatible(a, b)")
			require.Equal(t, c.wantCompat, IsCompatible(c.b, c.a), "IsCompatible(b, a) must be symmetric")

			got, ok := Intersect(c.a, c.b)
			require.Equal(t, c.wantCompat, ok)
			if c.wantCompat {
				require.Equal(t, c.wantIntersect, got)
			}

			gotRev, okRev := Intersect(c.b, c.a)
			require.Equal(t, c.wantCompat, okRev)
			if c.wantCompat {
				require.Equal(t, c.wantIntersect, gotRev, "Intersect(b, a) must match Intersect(a, b)")
			}
		})
	}
}

// TestCompatibleMinimumCompatibleAggregationFails reproduces the review's concrete repro
// directly against the version algebra: package A depends on X ^9.5.0,
// package B depends on X 9.3 (MinimumCompatible(9.3.0)). Merging both
// constraints must fail rather than silently collapsing to the weaker one.
func TestCompatibleMinimumCompatibleAggregationFails(t *testing.T) {
	fromA := Compatible(v(9, 5, 0))
	fromB := MinimumCompatible(v(9, 3, 0))

	_, ok := Intersect(fromA, fromB)
	require.False(t, ok, "X ^9.5.0 and X 9.3 must not be declared compatible: no version satisfies both")
}
