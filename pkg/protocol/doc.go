// Package protocol implements the binary wire protocol for store
// synchronization.
//
// The protocol defines how store writes flow from client to server and
// how coalesced updates flow from server to client over WebSocket
// connections.
//
// # Wire Format
//
// All messages are framed with a compact header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (uvarint)                     │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// # Frame Types
//
//   - FrameHello (0x00): ClientHello, connection setup
//   - FrameWelcome (0x01): Welcome, the server's handshake response
//   - FrameSet (0x02): Client → Server store writes
//   - FrameUpdate (0x03): Server → Client store updates
//   - FrameControl (0x04): Control messages (ping, resync, close)
//   - FrameAck (0x05): Acknowledgment
//   - FrameError (0x06): Error message
//
// # Encoding
//
// Small integers and lengths are unsigned varints (protobuf-style);
// strings and store values are length-prefixed; timestamps are
// fixed-width big-endian. Store values travel as opaque JSON bytes and
// are never interpreted by this package.
//
// The decoder is limit-aware: length prefixes are checked against the
// remaining buffer and an allocation cap, and collection counts are
// capped, so a malicious frame cannot force a large allocation.
//
// # Handshake
//
//	Client                          Server
//	  │                                │
//	  │──── ClientHello ─────────────>│
//	  │     (version, session, stores)│
//	  │                                │
//	  │<──── Welcome ─────────────────│
//	  │     (status, session, seq)    │
//	  │                                │
//
// After a successful handshake the server sends one Update frame with
// the snapshot flag set, carrying the full state of the subscribed
// stores, then incremental Update frames as stores change.
package protocol
