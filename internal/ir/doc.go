// Package ir holds the compiled form of portal declarations.
//
// A PortalSpec is what the schema compiler produces from CUE and what the
// attribute layer builds portals from. ir imports nothing internal, so every
// other package can depend on it.
//
// Specs are fingerprinted over their canonical JSON (RFC 8785 key order,
// NFC strings, integers only), so the same declaration hashes the same
// regardless of field order in the source file.
package ir
