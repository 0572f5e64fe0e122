// Package depgraph implements the dependency cache (C3): given a list of
// repositories plus an optional seed of already-known package definitions,
// it builds a fully-populated, deterministic DependencyGraph before the
// resolver ever starts searching (spec §4.3, §5 "the search itself performs
// no I/O").
package depgraph

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tapforge/tapforge/pkgmodel"
	"github.com/tapforge/tapforge/repo"
	"github.com/tapforge/tapforge/semver"
)

// Graph maps a package name to its candidates, version-descending, with
// lookup by (name, version). Build creates it and Extend may add names to it
// afterwards; the resolver makes all its Extend calls before its search
// starts and does not modify the graph after that.
type Graph struct {
	byName   map[string][]pkgmodel.PackageDef
	rawSeen  map[string]bool // name had >=1 repository/seed entry before OS/arch filtering
}

// ByName returns name's candidates in version-descending order, or nil if
// name has none.
func (g *Graph) ByName(name string) []pkgmodel.PackageDef {
	return g.byName[name]
}

// Lookup returns the PackageDef for (name, version), if present.
func (g *Graph) Lookup(name string, v semver.SemanticVersion) (pkgmodel.PackageDef, bool) {
	for _, d := range g.byName[name] {
		if d.Identity.Version.Equal(v) {
			return d, true
		}
	}
	return pkgmodel.PackageDef{}, false
}

// HasAnyVariant reports whether name had at least one entry somewhere —
// seeded or from a repository — before OS/arch compatibility filtering. It
// distinguishes PackageNotFound (no entry anywhere) from NoCompatibleVariant
// (entries exist, but none match the target OS/arch).
func (g *Graph) HasAnyVariant(name string) bool {
	return g.rawSeen[name]
}

// Names returns every name present in the graph, in no particular order.
func (g *Graph) Names() []string {
	out := make([]string, 0, len(g.byName))
	for n := range g.byName {
		out = append(out, n)
	}
	return out
}

// Builder populates a Graph from one or more repositories plus an optional
// seed (spec §4.3 steps 1-4).
type Builder struct {
	Repositories []repo.Client
	TargetOS     string
	TargetArch   pkgmodel.CpuArchitecture
	Seed         []pkgmodel.PackageDef
	Log          *logrus.Logger
}

// Build queries every repository for every name of interest, merges seeded
// definitions unconditionally, de-duplicates by (name, version) keeping the
// earliest repository's metadata, and sorts each name's candidates
// version-descending.
//
// names is the initial set of package names to populate; additional names
// discovered while the resolver walks dependency edges are added via
// Extend, so that the graph only ever does the I/O that's actually needed
// (spec never requires pre-loading the whole universe of every repository).
func (b *Builder) Build(names []string) (*Graph, error) {
	l := b.Log
	if l == nil {
		l = logrus.New()
	}

	g := &Graph{byName: make(map[string][]pkgmodel.PackageDef), rawSeen: make(map[string]bool)}

	for _, def := range b.Seed {
		g.byName[def.Identity.Name] = append(g.byName[def.Identity.Name], def)
		g.rawSeen[def.Identity.Name] = true
	}

	seen := make(map[string]bool)
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		if err := b.populate(g, n, l); err != nil {
			return nil, err
		}
	}

	for name := range g.byName {
		sortDescending(g.byName[name])
	}

	return g, nil
}

// Extend populates an additional name into an already-built graph. The
// resolver's closeGraph phase calls it for every dependency name it
// discovers, before the search starts, so the search itself does no I/O. A
// name that already has candidates in the graph is not queried again.
func (g *Graph) Extend(b *Builder, name string) error {
	if _, already := g.byName[name]; already {
		return nil
	}
	l := b.Log
	if l == nil {
		l = logrus.New()
	}
	if err := b.populate(g, name, l); err != nil {
		return err
	}
	sortDescending(g.byName[name])
	return nil
}

func (b *Builder) populate(g *Graph, name string, l *logrus.Logger) error {
	type keyed struct {
		id   pkgmodel.PackageIdentity
		repo int
	}
	seenKey := make(map[string]keyed)

	for ri, r := range b.Repositories {
		entries, err := r.ListVersions(name, b.TargetOS, b.TargetArch)
		if err != nil {
			if l.Level >= logrus.WarnLevel {
				l.WithFields(logrus.Fields{"repository": r.URL(), "name": name, "err": err}).Warn("repository query failed")
			}
			return err
		}
		if len(entries) > 0 {
			g.rawSeen[name] = true
		}

		for _, e := range entries {
			if !strings.EqualFold(e.Identity.OS, b.TargetOS) {
				continue
			}
			if !pkgmodel.HostSupports(b.TargetArch, e.Identity.Arch) {
				continue
			}

			key := e.Identity.Name + "@" + e.Identity.Version.String()
			if prior, dup := seenKey[key]; dup && prior.repo <= ri {
				// Earlier repository already won this (name, version); later
				// entries are discarded silently, per spec §4.2/§4.3.
				continue
			}

			def, err := r.GetDefinition(e.Handle)
			if err != nil {
				return err
			}
			seenKey[key] = keyed{id: e.Identity, repo: ri}

			replaceOrAppend(g, name, def)
		}
	}
	return nil
}

func replaceOrAppend(g *Graph, name string, def pkgmodel.PackageDef) {
	for i, existing := range g.byName[name] {
		if existing.Identity.Version.Equal(def.Identity.Version) {
			g.byName[name][i] = def
			return
		}
	}
	g.byName[name] = append(g.byName[name], def)
}

func sortDescending(defs []pkgmodel.PackageDef) {
	sort.SliceStable(defs, func(i, j int) bool {
		return defs[i].Identity.Version.Compare(defs[j].Identity.Version) > 0
	})
}
