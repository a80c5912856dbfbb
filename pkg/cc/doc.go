// Package cc defines the command model shared by every command class.
//
// A Command is one decoded or constructed application command: its
// identity (command class, command id, version), the source or
// destination node and endpoint, the raw payload and a typed Fields value
// produced by the variant's parser. Encapsulation commands own exactly one
// inner Command through Encapsulated.
//
// The Registry maps command class ids to Descriptors and (class, command)
// pairs to VariantSpecs. It is populated once at startup and then only
// read. Decoding never fails because a class or command id is unknown:
// such frames decode to *Unrecognized, which keeps the bytes so the
// command can still be logged, forwarded or re-encapsulated.
package cc
