// Package security defines the interface between the encapsulation engine
// and a security provider, and ships Keyring, a provider for a single
// network key that keeps the S0 nonce tables and S2 spans in memory.
//
// The engine never sees keys. It hands the provider plaintext plus a
// Context describing the frame and receives ciphertext with the tag
// appended; the provider fills in the nonce material the frame must carry.
package security
