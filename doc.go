// Package mclens keeps an incremental semantic model of a Monkey C project
// and answers symbol queries over it.
//
// # Project model
//
// A [Project] owns one project root. Edits from an editor and events from
// the filesystem arrive through [Project.Update]. Each change is sorted by
// [Classify] into a source file, a resource file, a build dependency (the
// jungle files and manifest) or a foreign path, and changes that cannot
// alter the project are dropped. The rest are coalesced by a batcher that
// waits for 200ms of quiet, and never longer than one second after the
// first unflushed change.
//
// A flushed batch becomes a job. One job runs at a time; batches that
// arrive meanwhile merge into a single queued job. A job either restarts
// (the build configuration is resolved again and every file is loaded) or
// patches the changed sources of the previous [Snapshot]. Unchanged
// entries are shared between snapshots, which are never mutated once
// published.
//
// A snapshot without a semantic analysis is a PreAnalysis. That happens on
// parse errors, on a build configuration error and on an analyzer failure.
// The project remembers the last snapshot that had an analysis so that
// queries which tolerate staleness keep working.
//
//	p, err := mclens.New("path/to/app", mclens.WithLogger(logger))
//	if err != nil { ... }
//	defer p.Close()
//
//	p.UpdateText("path/to/app/source/App.mc", text)
//	locs, err := p.References(ctx, "source/App.mc", pos, true)
//
// # Symbol queries
//
// [Resolve] finds the declarations a name may refer to. Each
// [LookupResult] says whether the occurrence is an exact binding: the
// declaring identifier itself, or a member of a class or module used as a
// type. [Expand] widens a non-exact class member to the overrides that
// dynamic dispatch can reach, using the snapshot's [ClassLattice].
// [FindReferences] walks the candidate files and resolves every matching
// identifier again, keeping those whose expanded set meets the targets.
//
// Rename is a restricted reference search. [CheckRename] refuses symbols
// of the device API, class members, module members whose name is used as
// a `:symbol`, and the `$` root, with a [RenameRejectedError]. Rename also
// refuses to run on a stale analysis.
//
// # Workspaces
//
// A [Workspace] holds one project per root, routes filesystem events from
// a [Watcher] to the owning project, and deduplicates concurrent opens.
package mclens
