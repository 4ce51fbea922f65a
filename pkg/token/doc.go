// Package token generates opaque, high-entropy bearer tokens for session and
// CSRF handles.
//
// A token is the hex encoded SHA-256 digest of EntropyLength bytes read from
// crypto/rand, so every token is exactly 64 lowercase hexadecimal characters
// regardless of the configured entropy. Collisions are treated as practically
// impossible; callers never retry on them.
//
// # Usage
//
//	import "github.com/dmitrymomot/sessionkit/pkg/token"
//
//	gen := token.NewGenerator(32)
//	tok, err := gen.Generate()
//	if err != nil {
//	    return err
//	}
//
//	if !token.Valid(tok) {
//	    // never happens for generated tokens
//	}
//
// Valid is a cheap syntactic check that lets transports discard forged or
// truncated values before they reach a store.
package token
