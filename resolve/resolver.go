// Package resolve implements the resolver (C4): backtracking search over a
// dependency cache for a consistent name->version assignment satisfying
// every root and fixed specifier plus their transitive dependencies.
package resolve

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/tapforge/tapforge/depgraph"
	"github.com/tapforge/tapforge/image"
	"github.com/tapforge/tapforge/pkgmodel"
	"github.com/tapforge/tapforge/semver"
)

// ResolveHook, when set, is consulted before the cache for a given name —
// an extensibility point mirroring the "on-resolve" callbacks of hand-rolled
// install scripts. It returns ok=false to fall through to the ordinary
// cache-backed search.
type ResolveHook func(name string) (pkgmodel.PackageDef, bool)

// Resolver runs the backtracking search described by the Resolve method. A
// Resolver is single-use per call to Resolve: it builds its own closed
// dependency graph from Builder for the specifier at hand.
type Resolver struct {
	Builder     *depgraph.Builder
	ResolveHook ResolveHook
	Log         *logrus.Logger

	diag *dotGraph
}

// Resolution is the outcome of a call to Resolve (spec §4.4 ImageResolution).
type Resolution struct {
	Success     bool
	Assignments map[string]semver.SemanticVersion
	Packages    []pkgmodel.PackageDef // deploy order: leaves first
	Diagnostic  string                // Dot notation; always populated
	Conflicts   []ConflictReport
	Err         error
}

type conState struct {
	spec   semver.VersionSpecifier
	source string
}

// Resolve searches for a consistent assignment for spec. It never returns a
// partial result: Success is either true with a complete Packages list, or
// false with Conflicts and a diagnostic graph explaining why.
func (r *Resolver) Resolve(ctx context.Context, spec *image.Specifier) *Resolution {
	l := r.Log
	if l == nil {
		l = logrus.New()
	}
	r.diag = newDotGraph()

	constraints := make(map[string]conState)
	var rootNames []string
	for _, root := range spec.Roots {
		if err := mergeConstraint(constraints, root.Name, root.Version, "root:"+root.Name); err != nil {
			return r.fail(err, root.Name)
		}
		rootNames = append(rootNames, root.Name)
	}
	for _, fixed := range spec.FixedPackages {
		if err := mergeConstraint(constraints, fixed.Name, fixed.Version, "fixed:"+fixed.Name); err != nil {
			return r.fail(err, fixed.Name)
		}
		rootNames = append(rootNames, fixed.Name)
	}

	if len(constraints) == 0 {
		return &Resolution{
			Success:     true,
			Assignments: map[string]semver.SemanticVersion{},
			Packages:    nil,
			Diagnostic:  r.diag.String(),
		}
	}

	r.Builder.Seed = append(r.Builder.Seed, spec.InstalledPackages...)
	r.Builder.Log = l

	g, err := r.closeGraph(rootNames)
	if err != nil {
		return &Resolution{Success: false, Err: err, Diagnostic: r.diag.String()}
	}

	assigned := make(map[string]pkgmodel.PackageDef)
	ok, final, conflict := r.search(ctx, g, constraints, assigned)
	if !ok {
		conflicts := []ConflictReport{}
		if conflict != nil {
			conflicts = append(conflicts, *conflict)
		}
		if conflict != nil && conflict.Detail == ErrCancelled {
			return &Resolution{Success: false, Err: ErrCancelled, Conflicts: conflicts, Diagnostic: r.diag.String()}
		}
		return &Resolution{
			Success:    false,
			Conflicts:  conflicts,
			Err:        fmt.Errorf("resolve: unsatisfiable: %s", conflict),
			Diagnostic: r.diag.String(),
		}
	}

	order := topoSort(final)
	assignments := make(map[string]semver.SemanticVersion, len(final))
	for name, def := range final {
		assignments[name] = def.Identity.Version
	}

	return &Resolution{
		Success:     true,
		Assignments: assignments,
		Packages:    order,
		Diagnostic:  r.diag.String(),
	}
}

func (r *Resolver) fail(err error, name string) *Resolution {
	return &Resolution{
		Success:    false,
		Err:        err,
		Conflicts:  []ConflictReport{{Name: name, Detail: err}},
		Diagnostic: r.diag.String(),
	}
}

func mergeConstraint(constraints map[string]conState, name string, spec semver.VersionSpecifier, source string) error {
	existing, has := constraints[name]
	if !has {
		constraints[name] = conState{spec: spec, source: source}
		return nil
	}
	merged, ok := semver.Intersect(existing.spec, spec)
	if !ok {
		return &ConstraintIntersectionEmptyError{
			Name:           name,
			Existing:       existing.spec,
			ExistingSource: existing.source,
			New:            spec,
			NewSource:      source,
		}
	}
	constraints[name] = conState{spec: merged, source: source}
	return nil
}

// closeGraph populates the dependency cache for every name transitively
// reachable from names, considering every candidate's dependencies (not
// just whichever the search ultimately picks) — so that the search proper
// performs no I/O (spec §4.3, §5).
func (r *Resolver) closeGraph(names []string) (*depgraph.Graph, error) {
	g, err := r.Builder.Build(dedupeNames(names))
	if err != nil {
		return nil, err
	}

	frontier := append([]string(nil), names...)
	visited := make(map[string]bool)
	for _, n := range frontier {
		visited[n] = true
	}

	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]

		for _, def := range g.ByName(next) {
			for _, dep := range def.Dependencies {
				if visited[dep.Name] {
					continue
				}
				visited[dep.Name] = true
				if err := g.Extend(r.Builder, dep.Name); err != nil {
					return nil, err
				}
				frontier = append(frontier, dep.Name)
			}
		}
	}

	return g, nil
}

func dedupeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// search performs the backtracking step described in spec §4.4: pick the
// open name with the fewest matching candidates, try each in descending
// version order, and recurse. Cycles are handled by the "already assigned"
// check inside applyDependencies rather than a separate in-progress set —
// once a name is tentatively assigned, revisiting it just validates the
// edge against the existing assignment.
func (r *Resolver) search(ctx context.Context, g *depgraph.Graph, constraints map[string]conState, assigned map[string]pkgmodel.PackageDef) (bool, map[string]pkgmodel.PackageDef, *ConflictReport) {
	select {
	case <-ctx.Done():
		return false, nil, &ConflictReport{Name: "*", Detail: ErrCancelled}
	default:
	}

	name, ok := r.pickOpenName(g, constraints, assigned)
	if !ok {
		return true, assigned, nil
	}

	cons := constraints[name]
	candidates := r.candidatesFor(g, name, cons)
	if len(candidates) == 0 {
		return false, nil, r.explainEmptyCandidates(g, name, cons)
	}

	var last *ConflictReport
	for _, def := range candidates {
		nextConstraints := cloneConstraints(constraints)
		nextAssigned := cloneAssigned(assigned)
		nextAssigned[name] = def

		r.diag.addCandidate(name, def.Identity.Version, false)

		if conflict := coexistenceConflict(nextAssigned, name, def); conflict != nil {
			r.diag.addCandidate(name, def.Identity.Version, true)
			last = conflict
			continue
		}

		feasible, conflict := r.applyDependencies(nextConstraints, nextAssigned, name, def)
		if !feasible {
			r.diag.addCandidate(name, def.Identity.Version, true)
			last = conflict
			continue
		}

		success, final, conflict := r.search(ctx, g, nextConstraints, nextAssigned)
		if success {
			return true, final, nil
		}
		last = conflict
	}

	if last == nil {
		last = &ConflictReport{Name: name, Detail: &DependencyUnsatisfiableError{Name: name}}
	}
	return false, nil, last
}

func (r *Resolver) applyDependencies(constraints map[string]conState, assigned map[string]pkgmodel.PackageDef, parent string, def pkgmodel.PackageDef) (bool, *ConflictReport) {
	parentKey := fmt.Sprintf("%s@%s", parent, def.Identity.Version)

	for _, dep := range def.Dependencies {
		depKey := dep.Name
		if existing, already := assigned[depKey]; already {
			admitted := dep.Version.IsSatisfiedBy(existing.Identity.Version)
			r.diag.addEdge(parentKey, fmt.Sprintf("%s@%s", depKey, existing.Identity.Version), dep.Version.String(), !admitted)
			if !admitted {
				return false, &ConflictReport{
					Name: depKey,
					Detail: fmt.Errorf("%s requires %s %s, but %s is already assigned %s (cycle)",
						parent, depKey, dep.Version.String(), depKey, existing.Identity.Version),
				}
			}
			continue
		}

		if err := mergeConstraint(constraints, depKey, dep.Version, parent); err != nil {
			return false, &ConflictReport{Name: depKey, Detail: err}
		}
	}
	return true, nil
}

func (r *Resolver) pickOpenName(g *depgraph.Graph, constraints map[string]conState, assigned map[string]pkgmodel.PackageDef) (string, bool) {
	type item struct {
		name  string
		count int
	}
	var items []item
	for name := range constraints {
		if _, done := assigned[name]; done {
			continue
		}
		items = append(items, item{name: name, count: len(r.candidatesFor(g, name, constraints[name]))})
	}
	if len(items) == 0 {
		return "", false
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].count != items[j].count {
			return items[i].count < items[j].count
		}
		return items[i].name < items[j].name
	})
	return items[0].name, true
}

// candidatesFor returns name's candidates admitted by cons, version-
// descending, excluding pre-releases unless cons demands one (spec §4.4
// "Pre-release versions are never selected unless explicitly demanded").
func (r *Resolver) candidatesFor(g *depgraph.Graph, name string, cons conState) []pkgmodel.PackageDef {
	if r.ResolveHook != nil {
		if def, ok := r.ResolveHook(name); ok {
			if cons.spec != nil && !cons.spec.IsSatisfiedBy(def.Identity.Version) {
				return nil
			}
			return []pkgmodel.PackageDef{def}
		}
	}

	demanded := cons.spec != nil && semver.PreReleaseDemanded(cons.spec)
	var out []pkgmodel.PackageDef
	for _, def := range g.ByName(name) {
		v := def.Identity.Version
		if cons.spec != nil && !cons.spec.IsSatisfiedBy(v) {
			continue
		}
		if v.IsPreRelease() && !demanded {
			continue
		}
		out = append(out, def)
	}
	return out
}

func (r *Resolver) explainEmptyCandidates(g *depgraph.Graph, name string, cons conState) *ConflictReport {
	raw := g.ByName(name)
	if len(raw) == 0 && !g.HasAnyVariant(name) {
		return &ConflictReport{Name: name, Detail: &PackageNotFoundError{Name: name}}
	}
	if len(raw) == 0 && g.HasAnyVariant(name) {
		return &ConflictReport{Name: name, Detail: &NoCompatibleVariantError{Name: name, OS: r.Builder.TargetOS, Arch: r.Builder.TargetArch}}
	}

	var fails []FailedCandidate
	for _, def := range raw {
		reason := "excluded"
		if cons.spec != nil && !cons.spec.IsSatisfiedBy(def.Identity.Version) {
			reason = fmt.Sprintf("does not satisfy %s (required by %s)", cons.spec.String(), cons.source)
		} else if def.Identity.Version.IsPreRelease() {
			reason = "pre-release, not demanded by any constraint"
		}
		fails = append(fails, FailedCandidate{Version: def.Identity.Version, Reason: reason})
	}
	return &ConflictReport{Name: name, Detail: &DependencyUnsatisfiableError{Name: name, Fails: fails}}
}

func cloneConstraints(m map[string]conState) map[string]conState {
	out := make(map[string]conState, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAssigned(m map[string]pkgmodel.PackageDef) map[string]pkgmodel.PackageDef {
	out := make(map[string]pkgmodel.PackageDef, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// coexistenceConflict checks spec §4.4 condition 4 for a candidate just
// tentatively placed into assigned: its architecture must coexist with every
// other already-assigned package's. Every prior assignment was already
// checked against the set that preceded it, so checking only the new
// arrival against the rest is sufficient to keep the whole set pairwise
// coexistent — and, unlike a single post-hoc pass over the final assignment,
// this runs inside search's candidate loop so a violation backtracks onto
// the next candidate instead of failing the whole resolve.
func coexistenceConflict(assigned map[string]pkgmodel.PackageDef, name string, def pkgmodel.PackageDef) *ConflictReport {
	others := make([]string, 0, len(assigned)-1)
	for n := range assigned {
		if n != name {
			others = append(others, n)
		}
	}
	sort.Strings(others)

	for _, other := range others {
		o := assigned[other]
		if !pkgmodel.Coexist(def.Identity.Arch, o.Identity.Arch) {
			return &ConflictReport{
				Name: name,
				Detail: fmt.Errorf("%s (%s) cannot coexist with %s (%s)",
					name, def.Identity.Arch, other, o.Identity.Arch),
			}
		}
	}
	return nil
}

func topoSort(assigned map[string]pkgmodel.PackageDef) []pkgmodel.PackageDef {
	names := make([]string, 0, len(assigned))
	for n := range assigned {
		names = append(names, n)
	}
	sort.Strings(names)

	visited := make(map[string]bool)
	order := make([]pkgmodel.PackageDef, 0, len(assigned))

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		def := assigned[name]

		deps := make([]string, 0, len(def.Dependencies))
		for _, d := range def.Dependencies {
			if _, ok := assigned[d.Name]; ok {
				deps = append(deps, d.Name)
			}
		}
		sort.Strings(deps)
		for _, d := range deps {
			visit(d)
		}
		order = append(order, def)
	}

	for _, n := range names {
		visit(n)
	}
	return order
}
