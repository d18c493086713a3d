// Package pkg holds the libraries behind govend.
//
// # Overview
//
// govend turns the dependencies a Go project declares into a populated
// vendor directory. The libraries are layered bottom-up:
//
//  1. [errors], [fsutil], [process], [cache] and [observability] - shared
//     infrastructure
//  2. [vcs] - providers that pin refs to revisions and write source trees
//     (git, module proxy, local directories)
//  3. [repository] and [pack] - mapping import paths to repository roots
//  4. [manifest] and [dependency] - declarations, go.mod requirements and
//     the recursive resolver
//  5. [snapshot] and [installer] - the record of the last run and the
//     vendor directory reconciliation
//  6. [config] - the govend.toml / govend.yaml project file
//
// # Data flow
//
//	govend.toml or go.mod
//	         ↓
//	    [config] notations
//	         ↓
//	    [dependency] resolver  ←  [pack] path resolution, [vcs] providers
//	         ↓
//	    flattened set
//	         ↓
//	    [installer]  ↔  [snapshot]
//	         ↓
//	    vendor/
//
// # Quick Start
//
//	h, _ := repository.NewHandler()
//	paths := pack.NewChain([]pack.Resolver{
//	    pack.NewRepositoryResolver(h),
//	    pack.KnownHostResolver{},
//	})
//	providers := vcs.NewRegistry().Register(vcs.Git, vcs.NewGit(nil))
//	r := dependency.NewResolver(paths, providers,
//	    dependency.WithManifestReader(manifest.NewReader()))
//
//	roots, err := r.ResolveAll(ctx, []dependency.Notation{
//	    &dependency.PackageNotation{Path: "github.com/pkg/errors", FirstLevel: true},
//	})
//	if err != nil {
//	    return err
//	}
//
//	snap := snapshot.New(snapshot.NewFileStore(".govend/snapshot.json"), nil)
//	report, err := installer.New(snap).Install(ctx, dependency.Flatten(roots), "vendor")
package pkg
