// Package link implements the per-link handshake and keepalive state
// machines of the bridge.
//
// A Link drives one symmetric wire-frame link (grid board or GUI). It moves
// between three states:
//
//	Disconnected --(send Handshake)--> HandshakePending
//	HandshakePending --(timeout)--> Disconnected, retried after backoff
//	any --(HandshakeReply or Handshake received)--> Connected
//	Connected --(no inbound traffic for the link timeout)--> Disconnected
//
// While connected the link pings at a fixed interval. Any inbound frame
// counts as traffic. A handshake received while already connected only
// refreshes the keepalive; observers are not notified again, so caches
// downstream are never reset by a duplicate.
//
// DAWSession is the asymmetric DAW link. The DAW initiates, and the session
// acknowledges only when its Gate reports every required hardware link as
// connected. Otherwise the handshake is withheld silently and the DAW is
// expected to retry.
//
// Neither type starts goroutines. Tick and HandleFrame are called from the
// application tick loop and time comes from an injected clock.
package link
