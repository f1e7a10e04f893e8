// Package main hosts the contentpipe CLI entrypoint and command graph.
//
// Each stage of the content pipeline is exposed as its own subcommand
// (ingest, transform, draft, publish, roundup) and "all" chains the first
// three. The command context resolves configuration once, and a session
// bundles the logger, item store, usage ledger, metrics and run lock for the
// duration of a single invocation.
//
// Keep this package lean: pipeline behaviour lives in the internal packages
// and commands only translate flags into their options.
package main
