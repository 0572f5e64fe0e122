package resolve

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tapforge/tapforge/pkgmodel"
	"github.com/tapforge/tapforge/semver"
)

// ErrCancelled is returned by Resolve when ctx is done at a cancellation
// point (every pop of the open set). It is distinguished from an ordinary
// unsatisfiable-constraint failure: the caller asked to stop, the search
// didn't exhaust itself.
var ErrCancelled = errors.New("resolve: cancelled")

// PackageNotFoundError reports that a required name has zero candidates
// anywhere in the dependency cache.
type PackageNotFoundError struct {
	Name string
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package %q could not be found in any configured repository", e.Name)
}

// NoCompatibleVariantError reports that candidates exist for Name but none
// match the target OS/architecture.
type NoCompatibleVariantError struct {
	Name string
	OS   string
	Arch pkgmodel.CpuArchitecture
}

func (e *NoCompatibleVariantError) Error() string {
	return fmt.Sprintf("package %q has candidates, but none compatible with %s/%s", e.Name, e.OS, e.Arch)
}

// ConstraintIntersectionEmptyError reports that two specifiers seen for the
// same name admit no version in common.
type ConstraintIntersectionEmptyError struct {
	Name           string
	Existing       semver.VersionSpecifier
	ExistingSource string
	New            semver.VersionSpecifier
	NewSource      string
}

func (e *ConstraintIntersectionEmptyError) Error() string {
	return fmt.Sprintf("constraint %s on %q (from %s) has no overlap with constraint %s (from %s)",
		e.New.String(), e.Name, e.NewSource, e.Existing.String(), e.ExistingSource)
}

// FailedCandidate records why one version of a package was rejected during
// search, for DependencyUnsatisfiableError's report.
type FailedCandidate struct {
	Version semver.SemanticVersion
	Reason  string
}

// DependencyUnsatisfiableError reports that backtracking exhausted every
// candidate for Name without finding a consistent assignment.
type DependencyUnsatisfiableError struct {
	Name    string
	Fails   []FailedCandidate
}

func (e *DependencyUnsatisfiableError) Error() string {
	if len(e.Fails) == 0 {
		return fmt.Sprintf("no candidate version of %q satisfies the current constraints", e.Name)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "no candidate version of %q satisfies the current constraints:", e.Name)
	for _, f := range e.Fails {
		fmt.Fprintf(&buf, "\n\t%s: %s", f.Version, f.Reason)
	}
	return buf.String()
}

// ConflictReport is one entry of a failed Resolution's Conflicts list: the
// minimal attribution of why a particular name could not be assigned.
type ConflictReport struct {
	Name   string
	Detail error
}

func (c ConflictReport) String() string {
	return fmt.Sprintf("%s: %s", c.Name, c.Detail)
}
