// Package textutil provides text helpers shared across pipeline stages:
// URL slugs, word counts, and rune-safe truncation.
//
// Slugs fold accented characters through Unicode NFKD decomposition so
// "Café Notes" and "Cafe Notes" produce the same path.
package textutil
