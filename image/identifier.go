package image

import (
	"context"
	"errors"
	"sort"

	"github.com/tapforge/tapforge/pkgmodel"
)

// Identifier is the immutable result of a successful resolve (spec §4.5):
// an ordered set of concrete packages plus the repositories they came from.
// Every dependency of every package in the set is itself present and
// satisfied — the resolver is responsible for that invariant; Identifier
// itself only exposes the result.
type Identifier struct {
	packages    []pkgmodel.PackageDef
	deployOrder []pkgmodel.PackageDef
	repos       []string
}

// NewIdentifier builds an Identifier from a deploy-ordered package list
// (leaves first, as produced by the resolver's topological sort) and the
// repository list the resolve was run against. The exposed Packages() are
// additionally sorted by name, per spec §3's ImageIdentifier invariant; the
// deploy order is preserved separately via DeployOrder.
func NewIdentifier(deployOrder []pkgmodel.PackageDef, repos []string) *Identifier {
	byName := make([]pkgmodel.PackageDef, len(deployOrder))
	copy(byName, deployOrder)
	sort.Slice(byName, func(i, j int) bool { return byName[i].Identity.Name < byName[j].Identity.Name })

	order := make([]pkgmodel.PackageDef, len(deployOrder))
	copy(order, deployOrder)

	return &Identifier{packages: byName, deployOrder: order, repos: repos}
}

// Packages returns the resolved set, sorted by name.
func (id *Identifier) Packages() []pkgmodel.PackageDef {
	out := make([]pkgmodel.PackageDef, len(id.packages))
	copy(out, id.packages)
	return out
}

// DeployOrder returns the packages in dependency order, leaves first, as a
// deploy subsystem would want to install them.
func (id *Identifier) DeployOrder() []pkgmodel.PackageDef {
	out := make([]pkgmodel.PackageDef, len(id.deployOrder))
	copy(out, id.deployOrder)
	return out
}

// Repositories returns the repository URLs the resolve consulted.
func (id *Identifier) Repositories() []string {
	out := make([]string, len(id.repos))
	copy(out, id.repos)
	return out
}

// SourceRepository returns which repository URL a named package came from,
// or ok=false if it was side-loaded with no repository.
func (id *Identifier) SourceRepository(name string) (url string, ok bool) {
	for _, p := range id.packages {
		if p.Identity.Name == name {
			if p.SourceRepository == "" {
				return "", false
			}
			return p.SourceRepository, true
		}
	}
	return "", false
}

// ErrDeployNotImplemented is returned by Deploy: materializing an image onto
// disk — fetching each package's payload and copying it into target_dir —
// is the out-of-scope deploy subsystem's job (spec §1, §4.5). Identifier only
// specifies the contract a deploy implementation must honor.
var ErrDeployNotImplemented = errors.New("image: Deploy is implemented by the deploy subsystem, not by the resolver")

// Deploy is a contract stub: a real deploy subsystem fetches each package's
// payload from its SourceRepository and installs it under targetDir,
// checking ctx for cancellation between packages. The resolver performs no
// I/O, so this implementation only documents the contract.
func (id *Identifier) Deploy(ctx context.Context, targetDir string) error {
	return ErrDeployNotImplemented
}
