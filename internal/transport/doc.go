// Package transport moves raw bytes between the bridge and the outside
// world: serial ports for the grid board and GUI, USB-MIDI for the DAW,
// and an in-memory pipe for tests and the simulator.
//
// Every transport reads on a background goroutine into a bounded queue.
// The application drains that queue with Poll from its tick loop, so no
// protocol state is touched off the main goroutine. When the queue is full
// new chunks are dropped and counted.
package transport
