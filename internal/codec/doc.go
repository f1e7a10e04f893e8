// Package codec converts drafts to and from the flat review document a human
// editor works on.
//
// Encode produces ordered insertion blocks addressed by absolute document
// offsets (UTF-16 code units, starting at 1). Decode reads the edited text
// back through a tagged-line state machine and never fails: missing or
// reordered sections leave the corresponding fields empty.
package codec
