// Package merge implements the merge engine (C6): it converts an existing
// installation plus a set of new root specifiers into an augmented
// ImageSpecifier, so the resolver only ever has to solve the ordinary
// root/fixed-constraint problem (spec §4.6).
package merge

import (
	"os"

	"github.com/tapforge/tapforge/image"
	"github.com/tapforge/tapforge/pkgmodel"
	"github.com/tapforge/tapforge/semver"
)

// LocalLoader resolves a root specifier's name to an installed PackageDef
// when that name denotes a local file-path package rather than one fetched
// from a repository — e.g. a test plan under active development. Returning
// ok=false means the name is an ordinary repository package.
type LocalLoader func(name string) (pkgmodel.PackageDef, bool)

// Merge partitions installed into replaced (superseded by a new root, or
// local) and retained, then augments base with fixedPackages/seed entries
// for the retained set (spec §4.6 steps 1-3). base's Roots must already
// hold the new specifiers; Merge re-pins each root that loader reports as
// local to Exact(version) and adds the retained set to FixedPackages and
// InstalledPackages. base itself is not modified.
func Merge(base *image.Specifier, installed []pkgmodel.PackageDef, loader LocalLoader) *image.Specifier {
	out := *base
	out.Roots = append([]pkgmodel.PackageSpecifier(nil), base.Roots...)
	out.FixedPackages = append([]pkgmodel.PackageSpecifier(nil), base.FixedPackages...)
	out.InstalledPackages = append([]pkgmodel.PackageDef(nil), base.InstalledPackages...)

	rootNames := make(map[string]bool, len(base.Roots))
	for _, root := range base.Roots {
		rootNames[root.Name] = true
	}

	for i, root := range out.Roots {
		if def, ok := loader(root.Name); ok {
			out.Roots[i].Version = semver.Exact(def.Identity.Version)
		}
	}

	for _, inst := range installed {
		name := inst.Identity.Name
		if rootNames[name] {
			continue // replaced: a new root specifier supersedes it
		}
		if _, isLocal := loader(name); isLocal {
			continue // replaced: re-pinned above as an Exact root
		}

		out.FixedPackages = append(out.FixedPackages, pkgmodel.PackageSpecifier{
			Name:    name,
			Version: semver.Compatible(inst.Identity.Version),
		})
		out.InstalledPackages = append(out.InstalledPackages, inst)
	}

	return &out
}

// PathLoader builds a LocalLoader from a name->filesystem-path map. Each
// call stats the mapped path and loads its definition through load; nothing
// is cached between calls. A name absent from paths, or whose path does not exist, is not
// local (ok=false): Merge then treats it as an ordinary repository package.
func PathLoader(paths map[string]string, load func(path string) (pkgmodel.PackageDef, error)) LocalLoader {
	return func(name string) (pkgmodel.PackageDef, bool) {
		path, has := paths[name]
		if !has {
			return pkgmodel.PackageDef{}, false
		}
		if _, err := os.Stat(path); err != nil {
			return pkgmodel.PackageDef{}, false
		}
		def, err := load(path)
		if err != nil {
			return pkgmodel.PackageDef{}, false
		}
		return def, true
	}
}
