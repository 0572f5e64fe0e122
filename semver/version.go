// Package semver implements the version algebra consumed by the rest of
// tapforge: parsing and comparing semantic versions, and parsing and
// evaluating the version specifiers (Any, AnyRelease, Exact, Compatible,
// MinimumCompatible) that appear in package specifiers and dependency
// declarations.
package semver

import (
	"fmt"
	"strconv"
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"
)

// SemanticVersion is major.minor.patch[-preRelease][+buildMetadata], per
// SemVer 2. The zero value is version 0.0.0.
type SemanticVersion struct {
	Major, Minor, Patch uint64
	PreRelease          string
	BuildMetadata       string
}

// ParseVersion parses a fully-qualified "major.minor.patch[-pre][+build]"
// string. It does not accept the two-component "major.minor" shorthand; that
// form only ever appears as a MinimumCompatible specifier reference, parsed
// by ParseSpecifier.
func ParseVersion(s string) (SemanticVersion, error) {
	sv, err := mmsemver.StrictNewVersion(s)
	if err != nil {
		return SemanticVersion{}, &ParseError{Input: s, Reason: err.Error()}
	}
	return fromMasterminds(sv), nil
}

func fromMasterminds(sv *mmsemver.Version) SemanticVersion {
	return SemanticVersion{
		Major:         sv.Major(),
		Minor:         sv.Minor(),
		Patch:         sv.Patch(),
		PreRelease:    sv.Prerelease(),
		BuildMetadata: sv.Metadata(),
	}
}

// toMasterminds round-trips through String(); v was itself produced by a
// successful parse (or by the constructors below, which only ever compose
// already-valid fields), so the re-parse cannot fail.
func (v SemanticVersion) toMasterminds() *mmsemver.Version {
	sv, err := mmsemver.StrictNewVersion(v.core())
	if err != nil {
		panic(fmt.Sprintf("semver: invalid SemanticVersion %q: %v", v.core(), err))
	}
	return sv
}

func (v SemanticVersion) core() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreRelease != "" {
		b.WriteByte('-')
		b.WriteString(v.PreRelease)
	}
	if v.BuildMetadata != "" {
		b.WriteByte('+')
		b.WriteString(v.BuildMetadata)
	}
	return b.String()
}

func (v SemanticVersion) String() string { return v.core() }

// IsPreRelease reports whether v carries a pre-release identifier.
func (v SemanticVersion) IsPreRelease() bool { return v.PreRelease != "" }

// Compare returns -1, 0 or 1 as v is less than, equal to, or greater than o,
// ordering by major, minor, patch, then pre-release per SemVer 2 (absence of
// a pre-release sorts above any pre-release).
func (v SemanticVersion) Compare(o SemanticVersion) int {
	return v.toMasterminds().Compare(o.toMasterminds())
}

func (v SemanticVersion) Equal(o SemanticVersion) bool      { return v.Compare(o) == 0 }
func (v SemanticVersion) LessThan(o SemanticVersion) bool   { return v.Compare(o) < 0 }
func (v SemanticVersion) GreaterThan(o SemanticVersion) bool { return v.Compare(o) > 0 }
func (v SemanticVersion) GreaterOrEqual(o SemanticVersion) bool { return v.Compare(o) >= 0 }

// twoComponent parses a "major.minor" reference, as used by the
// MinimumCompatible specifier form. The implied patch is 0.
func twoComponent(s string) (SemanticVersion, error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 2 {
		return SemanticVersion{}, &ParseError{Input: s, Reason: "expected major.minor"}
	}
	major, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return SemanticVersion{}, &ParseError{Input: s, Reason: "invalid major component"}
	}
	minor, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return SemanticVersion{}, &ParseError{Input: s, Reason: "invalid minor component"}
	}
	return SemanticVersion{Major: major, Minor: minor}, nil
}

// ParseError reports a malformed version or specifier string. No default
// version is ever substituted in its place.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("semver: cannot parse %q: %s", e.Input, e.Reason)
}
