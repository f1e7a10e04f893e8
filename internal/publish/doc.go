// Package publish turns approved review documents into MDX artifacts.
//
// A scan lists review documents newest first, skips any document that
// already has a published marker, decodes the rest and keeps only those
// whose status carries the approval token. Each approved document is
// classified as a guide or an article, written under the matching content
// directory, optionally committed with git, flipped to PUBLISHED in the
// document itself, appended to the social queue, and finally recorded with
// a marker keyed by document ID so later scans ignore it.
package publish
