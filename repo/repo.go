// Package repo defines the repository-client capability (C2) the dependency
// cache pulls candidate package metadata from, plus concrete
// implementations: filerepo (a local, JSON-index-backed repository, the
// offline/side-loaded analogue of an authenticated network registry, which
// is out of this module's scope) and boltcache (a persistent cache wrapper
// around any Client).
package repo

import (
	"fmt"

	"github.com/tapforge/tapforge/pkgmodel"
)

// Handle opaquely identifies a package definition within a single
// repository; it is resolved to a full PackageDef via GetDefinition. Handles
// are never compared across repositories.
type Handle interface{}

// VersionEntry pairs a concrete version with the handle needed to fetch its
// full definition.
type VersionEntry struct {
	Identity pkgmodel.PackageIdentity
	Handle   Handle
}

// Client is the minimal capability a repository must provide (spec §4.2,
// §9 "Repository polymorphism"): list candidate versions for a name under a
// given OS/arch, and resolve a handle to its full definition. Implementations
// may also provide Names for diagnostics only; the core never depends on it
// for correctness.
type Client interface {
	// URL identifies this repository for diagnostics and for the
	// repository-order tie-break of spec §4.2/§4.3.
	URL() string
	// ListVersions returns every candidate version of name this repository
	// knows about for the given OS/arch; the cache applies its own
	// compatibility filtering, so implementations may over-return.
	ListVersions(name, os string, arch pkgmodel.CpuArchitecture) ([]VersionEntry, error)
	// GetDefinition resolves a handle (previously returned by ListVersions on
	// this same Client) to its full PackageDef.
	GetDefinition(h Handle) (pkgmodel.PackageDef, error)
}

// NamesLister is an optional capability: repositories that can enumerate
// every package name they carry implement it, for diagnostics only.
type NamesLister interface {
	Names() ([]string, error)
}

// ErrorKind distinguishes a transient failure (network blip, timeout) — which
// a caller may reasonably retry — from a permanent one (malformed index,
// package genuinely absent). The core itself never retries transparently
// (spec §4.2).
type ErrorKind uint8

const (
	Transient ErrorKind = iota
	Permanent
)

// Error wraps a repository failure with the URL it came from and whether it
// is transient or permanent.
type Error struct {
	RepositoryURL string
	Kind          ErrorKind
	Err           error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Kind == Transient {
		kind = "transient"
	}
	return fmt.Sprintf("repository %s: %s error: %v", e.RepositoryURL, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds a repository Error.
func Wrap(url string, kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{RepositoryURL: url, Kind: kind, Err: err}
}
