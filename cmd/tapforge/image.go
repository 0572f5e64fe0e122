package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tapforge/tapforge/depgraph"
	"github.com/tapforge/tapforge/imagedoc"
	"github.com/tapforge/tapforge/merge"
	"github.com/tapforge/tapforge/pkgmodel"
	"github.com/tapforge/tapforge/repo"
	"github.com/tapforge/tapforge/repo/filerepo"
	"github.com/tapforge/tapforge/resolve"
)

// Exit codes per spec §6: 0 success, a distinct code for an unsatisfiable
// image, 1 for any other failure.
const (
	exitSuccess           = 0
	exitGeneric           = 1
	exitPackageDependency = 2
)

type imageCommand struct{}

func (imageCommand) Name() string      { return "image" }
func (imageCommand) Args() string      { return "install <path-or-inline> [flags]" }
func (imageCommand) ShortHelp() string { return "Resolve and install an image" }
func (imageCommand) LongHelp() string {
	return `Resolve a declarative image into a concrete package set and print the
resolved name=version list. The package set is not deployed; the output is
the same with or without -dry-run.`
}

type repeatableFlag struct{ values []string }

func (r *repeatableFlag) String() string   { return strings.Join(r.values, ",") }
func (r *repeatableFlag) Set(v string) error {
	r.values = append(r.values, v)
	return nil
}

func (imageCommand) Register(fs *flag.FlagSet) {}

func (cmd imageCommand) Run(c *Config, args []string) int {
	if len(args) == 0 || args[0] != "install" {
		fmt.Fprintln(c.Stderr, "tapforge image: expected \"install <path-or-inline>\"")
		return exitGeneric
	}
	return cmd.install(c, args[1:])
}

func (imageCommand) install(c *Config, args []string) int {
	fs := flag.NewFlagSet("image install", flag.ContinueOnError)
	doMerge := fs.Bool("merge", false, "treat the currently installed packages as soft constraints")
	installed := fs.String("installed", "", "path to the installed-package lock file (same JSON index format as -repository); required with -merge")
	// consumed by the out-of-scope interactive-prompt layer, not by the resolver
	fs.Bool("non-interactive", false, "never prompt; fail instead of asking")
	targetOS := fs.String("OS", "", "target operating system")
	targetArch := fs.String("Architecture", "", "target CPU architecture")
	dryRun := fs.Bool("dry-run", false, "print the resolved name->version list without deploying")
	var repos repeatableFlag
	fs.Var(&repos, "repository", "repository URL (repeatable)")

	if err := fs.Parse(args); err != nil {
		return exitGeneric
	}

	if fs.NArg() == 0 {
		fmt.Fprintln(c.Stderr, "tapforge image install: missing <path-or-inline>")
		return exitGeneric
	}
	source := fs.Arg(0)

	l := logrus.New()
	l.Out = c.Stderr

	body, err := readImageSource(source)
	if err != nil {
		fmt.Fprintln(c.Stderr, err)
		return exitGeneric
	}

	arch := pkgmodel.ParseArch(*targetArch)
	spec, err := imagedoc.Parse(body, *targetOS, arch)
	if err != nil {
		fmt.Fprintln(c.Stderr, err)
		return exitGeneric
	}
	for _, url := range repos.values {
		spec.Repositories = append(spec.Repositories, url)
	}

	if *doMerge {
		if *installed == "" {
			fmt.Fprintln(c.Stderr, "tapforge image install: -merge requires -installed <lock-file>")
			return exitGeneric
		}
		installedPackages, err := loadInstalled(*installed)
		if err != nil {
			fmt.Fprintln(c.Stderr, err)
			return exitGeneric
		}
		// no local file-path packages from this command: every root and every
		// installed entry resolves against the configured repositories.
		noLocal := func(string) (pkgmodel.PackageDef, bool) { return pkgmodel.PackageDef{}, false }
		spec = merge.Merge(spec, installedPackages, noLocal)
	}

	clients, err := openRepositories(spec.Repositories)
	if err != nil {
		fmt.Fprintln(c.Stderr, err)
		return exitGeneric
	}

	r := &resolve.Resolver{
		Builder: &depgraph.Builder{
			Repositories: clients,
			TargetOS:     spec.OS,
			TargetArch:   spec.Arch,
			Log:          l,
		},
		Log: l,
	}

	res := r.Resolve(context.Background(), spec)
	if !res.Success {
		if len(res.Conflicts) == 0 {
			// a repository failure while building the dependency graph
			fmt.Fprintln(c.Stderr, res.Err)
			return exitGeneric
		}
		for _, conflict := range res.Conflicts {
			fmt.Fprintln(c.Stderr, conflict.String())
		}
		if res.Err == resolve.ErrCancelled {
			return exitGeneric
		}
		return exitPackageDependency
	}

	names := make([]string, 0, len(res.Assignments))
	for n := range res.Assignments {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(c.Stdout, "%s=%s\n", n, res.Assignments[n])
	}

	if *dryRun {
		return exitSuccess
	}

	// Deploy is out of scope (spec §1): a real build would hand res.Packages
	// to the deploy subsystem here.
	return exitSuccess
}

func readImageSource(source string) ([]byte, error) {
	if info, err := os.Stat(source); err == nil && !info.IsDir() {
		return os.ReadFile(source)
	}
	return []byte(source), nil
}

// loadInstalled reads an installed-package lock file: the same JSON index
// format filerepo uses for a repository, naming the packages already present
// on the target rather than ones available to fetch. Reusing filerepo.Load
// means a lock file is just a repository with one version per name.
func loadInstalled(path string) ([]pkgmodel.PackageDef, error) {
	r, err := filerepo.Load(path, path)
	if err != nil {
		return nil, err
	}
	names, err := r.Names()
	if err != nil {
		return nil, err
	}

	var out []pkgmodel.PackageDef
	for _, name := range names {
		entries, err := r.ListVersions(name, "", pkgmodel.Unspecified)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			def, err := r.GetDefinition(e.Handle)
			if err != nil {
				return nil, err
			}
			out = append(out, def)
		}
	}
	return out, nil
}

// openRepositories wires each URL to a repo.Client. Only file-backed indexes
// are supported directly: authenticated HTTP fetching is out of scope
// (spec §1 Non-goals); a real deployment would inject an HTTP-backed
// repo.Client here instead.
func openRepositories(urls []string) ([]repo.Client, error) {
	clients := make([]repo.Client, 0, len(urls))
	for _, url := range urls {
		path := strings.TrimPrefix(url, "file://")
		r, err := filerepo.Load(url, path)
		if err != nil {
			return nil, err
		}
		clients = append(clients, r)
	}
	return clients, nil
}
