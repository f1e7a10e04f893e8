// Package transform advances ingested items to transformed by generating a
// long-form blog draft and, when possible, Instagram and TikTok assets.
//
// Each generation sub-task returns its own immutable result shape
// (BlogResult, InstagramResult, TikTokResult). MergeSocial combines the two
// social results into the item's SocialDraft. Every metered call is gated by
// the usage ledger; an exhausted budget halts the whole run rather than
// skipping one item. The voice check annotates the draft with banned-phrase
// warnings and never blocks progression.
package transform
