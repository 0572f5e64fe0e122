// Package filerepo implements repo.Client against a local JSON index file —
// the side-loaded/offline analogue of an authenticated network registry,
// whose transport this module does not implement (spec §1 Non-goals).
package filerepo

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/tapforge/tapforge/pkgmodel"
	"github.com/tapforge/tapforge/repo"
	"github.com/tapforge/tapforge/semver"
)

// rawIndex mirrors the on-disk JSON document. One entry per package
// version; dependencies use the same specifier grammar as package images.
type rawIndex struct {
	Packages []rawPackage `json:"packages"`
}

type rawPackage struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	OS           string            `json:"os"`
	Architecture string            `json:"architecture"`
	Dependencies map[string]string `json:"dependencies"`
}

type entry struct {
	def pkgmodel.PackageDef
}

// Repository is a repo.Client backed by an in-memory index loaded once from
// a JSON file at construction time.
type Repository struct {
	url     string
	entries []entry
}

// Load reads and parses a JSON package index from path. Parse errors are
// returned immediately; no default package set is assumed.
func Load(url, path string) (*Repository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, repo.Wrap(url, repo.Permanent, errors.Wrap(err, "opening index"))
	}
	defer f.Close()

	var raw rawIndex
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, repo.Wrap(url, repo.Permanent, errors.Wrap(err, "decoding index"))
	}

	r := &Repository{url: url}
	for _, rp := range raw.Packages {
		def, err := toPackageDef(url, rp)
		if err != nil {
			return nil, repo.Wrap(url, repo.Permanent, err)
		}
		r.entries = append(r.entries, entry{def: def})
	}
	return r, nil
}

func toPackageDef(url string, rp rawPackage) (pkgmodel.PackageDef, error) {
	v, err := semver.ParseVersion(rp.Version)
	if err != nil {
		return pkgmodel.PackageDef{}, errors.Wrapf(err, "package %s", rp.Name)
	}

	deps := make([]pkgmodel.PackageDependency, 0, len(rp.Dependencies))
	for name, spec := range rp.Dependencies {
		vs, err := semver.ParseSpecifier(spec)
		if err != nil {
			return pkgmodel.PackageDef{}, errors.Wrapf(err, "dependency %s of %s", name, rp.Name)
		}
		deps = append(deps, pkgmodel.PackageDependency{Name: name, Version: vs})
	}

	return pkgmodel.PackageDef{
		Identity: pkgmodel.PackageIdentity{
			Name:    rp.Name,
			Version: v,
			OS:      rp.OS,
			Arch:    pkgmodel.ParseArch(rp.Architecture),
		},
		Dependencies:     deps,
		SourceRepository: url,
	}, nil
}

func (r *Repository) URL() string { return r.url }

// ListVersions returns every entry under name, regardless of os/arch: the
// index has no server-side filtering capability, so OS/architecture
// compatibility is left entirely to the dependency cache (depgraph), which
// needs to see the unfiltered set to distinguish "no candidates anywhere"
// from "candidates exist, but none for this target" (spec §4.4 tie-break
// between PackageNotFound and NoCompatibleVariant).
func (r *Repository) ListVersions(name, os string, arch pkgmodel.CpuArchitecture) ([]repo.VersionEntry, error) {
	var out []repo.VersionEntry
	for i, e := range r.entries {
		if e.def.Identity.Name != name {
			continue
		}
		out = append(out, repo.VersionEntry{Identity: e.def.Identity, Handle: i})
	}
	return out, nil
}

func (r *Repository) GetDefinition(h repo.Handle) (pkgmodel.PackageDef, error) {
	i, ok := h.(int)
	if !ok || i < 0 || i >= len(r.entries) {
		return pkgmodel.PackageDef{}, fmt.Errorf("filerepo: invalid handle %v", h)
	}
	return r.entries[i].def, nil
}

func (r *Repository) Names() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, e := range r.entries {
		if !seen[e.def.Identity.Name] {
			seen[e.def.Identity.Name] = true
			out = append(out, e.def.Identity.Name)
		}
	}
	return out, nil
}
