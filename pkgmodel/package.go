package pkgmodel

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tapforge/tapforge/semver"
)

// PackageSpecifier names a package together with a version constraint and
// optional target restrictions. It appears as an ImageSpecifier root and as
// a fixed package entry; dependency edges use PackageDependency instead.
type PackageSpecifier struct {
	Name    string
	Version semver.VersionSpecifier
	Arch    CpuArchitecture // zero value Unspecified: inherit the image's target
	OS      string          // empty: inherit the image's target
}

func (s PackageSpecifier) String() string {
	if s.Version == nil {
		return s.Name
	}
	return fmt.Sprintf("%s%s", s.Name, versionSuffix(s.Version))
}

func versionSuffix(v semver.VersionSpecifier) string {
	str := v.String()
	if str == "" {
		return ""
	}
	return ":" + str
}

// PackageIdentity uniquely identifies a concrete package variant.
type PackageIdentity struct {
	Name    string
	Version semver.SemanticVersion
	OS      string
	Arch    CpuArchitecture
}

func (id PackageIdentity) String() string {
	return fmt.Sprintf("%s@%s (%s, %s)", id.Name, id.Version, id.OS, id.Arch)
}

// Equal reports identity equality; PackageDefs with equal identity are
// interchangeable per spec §3.
func (id PackageIdentity) Equal(o PackageIdentity) bool {
	return id.Name == o.Name &&
		id.Version.Equal(o.Version) &&
		strings.EqualFold(id.OS, o.OS) &&
		id.Arch == o.Arch
}

// PackageDependency is one dependency edge of a PackageDef: a name and the
// version constraint that must be satisfied by whatever version is ultimately
// assigned to that name.
type PackageDependency struct {
	Name    string
	Version semver.VersionSpecifier
}

// VersionSpecifier is a closed tagged union, so it can't be unmarshaled
// generically; PackageDependency round-trips it through its parse syntax
// instead. This is what makes a PackageDef safe to persist in the bolt
// repository cache (repo/boltcache) and to re-read back as a usable
// candidate.
func (d PackageDependency) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}{Name: d.Name, Version: d.Version.String()})
}

func (d *PackageDependency) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := semver.ParseSpecifier(raw.Version)
	if err != nil {
		return err
	}
	d.Name, d.Version = raw.Name, v
	return nil
}

// PackageDef is a concrete, versioned package: its identity, its
// dependencies, and (optionally) which repository it was drawn from. Two
// PackageDefs with equal Identity are interchangeable; when both are
// candidates for the same (name, version), ties are broken by repository
// order (§4.2, §4.3).
type PackageDef struct {
	Identity         PackageIdentity
	Dependencies     []PackageDependency
	SourceRepository string // empty for side-loaded/local packages
}

func (d PackageDef) Name() string                      { return d.Identity.Name }
func (d PackageDef) Version() semver.SemanticVersion    { return d.Identity.Version }
