// Package server is the GUI endpoint of the bridge: a WebSocket server
// that carries wire frames in binary messages.
//
// The GUI connects to ws://host:port/link. Each binary message holds one
// or more complete wire frames, exactly as they would travel on a serial
// link; the bridge runs the same receiver and link state machine over
// them. Only one GUI is attached at a time. A new client replaces the
// previous one.
//
// # Usage
//
//	srv := server.New(server.Config{Addr: ":8765"})
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Shutdown(context.Background())
//
//	guiLink := link.New(link.Config{Name: "gui", Role: link.Initiator}, srv)
//	for {
//	    frames := receiver.Feed(srv.Poll())
//	    ...
//	}
//
// # TLS
//
// When a certificate and key are configured the endpoint is served as
// wss:// with TLS 1.2 or later.
//
// # Thread Safety
//
// Reads happen on one goroutine per client and land in a bounded queue.
// Write and Poll may be called from the tick loop while the server runs.
package server
