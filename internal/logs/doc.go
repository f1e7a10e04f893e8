// Package logs reads the JSON run log written under paths.log_dir.
//
// Last returns the final lines of the file with bounded memory, Follow polls
// for appended lines until its context ends, and Parse/Filter turn raw lines
// into entries that the logs command can narrow by item or level.
package logs
