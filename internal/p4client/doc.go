// Package p4client maintains a P4Runtime control-plane session with a
// forwarding device: the bidirectional stream with its mastership
// arbitration handshake, batched write transactions with structured
// per-item failure decoding, and the unary pipeline-config operations.
//
// A Client is driven by one logical caller at a time. The inbound
// stream queue has discard-on-mismatch semantics with a single
// consumer; see Client.WaitForMessage.
package p4client
