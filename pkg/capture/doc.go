// Package capture records the frames a driver sends and receives.
//
// Records are CBOR encoded with integer keys and appended to a stream, so a
// capture file is a sequence of self-delimiting items that Reader iterates.
// Every record carries a trace id; the segments of one outgoing datagram
// share a trace, as do the layers logged for one incoming frame.
package capture
