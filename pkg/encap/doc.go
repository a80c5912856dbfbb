// Package encap composes and decomposes encapsulation layers.
//
// A command travels wrapped, outer to inner, in at most one layer of each
// kind and in a fixed order:
//
//	transport service > S0 | S2 | CRC-16 > multi channel > supervision > application
//
// Engine builds wrapped commands one layer at a time, removes layers from
// decoded frames through the security provider when needed, and mirrors
// a request's layers onto its response. Segmenting datagrams into
// transport service frames and reassembling them is handled by Fragment
// and Reassembler, separately from command-level partial reports.
package encap
