// Package image implements the ImageSpecifier builder and the immutable
// ImageIdentifier (spec §3, §4.5, §9 "Builder pattern for ImageSpecifier").
package image

import (
	"fmt"

	"github.com/tapforge/tapforge/pkgmodel"
)

// Specifier is the resolver's input: root package specifiers, the
// repositories to search, the deployment target, and (merge-flow only) the
// fixed and installed package sets (spec §3, §4.6).
type Specifier struct {
	Roots             []pkgmodel.PackageSpecifier
	Repositories      []string
	OS                string
	Arch              pkgmodel.CpuArchitecture
	FixedPackages     []pkgmodel.PackageSpecifier
	InstalledPackages []pkgmodel.PackageDef
}

// Builder constructs a Specifier, enforcing at Build time that OS/Arch are
// set and that no duplicate root names appear (spec §9).
type Builder struct {
	spec     Specifier
	rootSeen map[string]bool
	err      error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{rootSeen: make(map[string]bool)}
}

func (b *Builder) OS(os string) *Builder {
	b.spec.OS = os
	return b
}

func (b *Builder) Arch(arch pkgmodel.CpuArchitecture) *Builder {
	b.spec.Arch = arch
	return b
}

// AddRoot adds a root package specifier. A duplicate root name is recorded
// as a build error rather than failing immediately, so callers can chain
// calls and inspect the error once at Build.
func (b *Builder) AddRoot(ps pkgmodel.PackageSpecifier) *Builder {
	if b.rootSeen[ps.Name] {
		b.err = fmt.Errorf("image: duplicate root package %q", ps.Name)
		return b
	}
	b.rootSeen[ps.Name] = true
	b.spec.Roots = append(b.spec.Roots, ps)
	return b
}

func (b *Builder) AddRepository(url string) *Builder {
	b.spec.Repositories = append(b.spec.Repositories, url)
	return b
}

func (b *Builder) AddFixed(ps pkgmodel.PackageSpecifier) *Builder {
	b.spec.FixedPackages = append(b.spec.FixedPackages, ps)
	return b
}

func (b *Builder) AddInstalled(def pkgmodel.PackageDef) *Builder {
	b.spec.InstalledPackages = append(b.spec.InstalledPackages, def)
	return b
}

// Build validates and returns the finished Specifier.
func (b *Builder) Build() (*Specifier, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.spec.OS == "" {
		return nil, fmt.Errorf("image: OS must be set")
	}
	if b.spec.Arch == pkgmodel.Unspecified {
		return nil, fmt.Errorf("image: Arch must be set")
	}
	spec := b.spec
	return &spec, nil
}
