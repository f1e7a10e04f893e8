// Package preflight provides readiness checks for the directories, binaries
// and remote services the content pipeline depends on.
//
// The CLI "contentpipe status" command renders RunAll alongside the
// CheckSystemDeps table. Generation and notification checks touch the network
// and are only run when their credentials are configured.
package preflight
