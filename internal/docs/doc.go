// Package docs is the review document service.
//
// Service is implemented by two backends: Google Docs (with Drive for
// folders and media) and a local directory of JSON documents for offline
// runs. Offsets follow the Google Docs convention: UTF-16 code units with
// the body starting at index 1.
package docs
