// Package nanogio drives non-blocking message sockets from a single-threaded event loop.
//
// Coroutines run as tasks on an [EventLoop] and suspend by awaiting futures.
// A [Socket] wraps a [transport.Handle]: its receive and send descriptors are
// registered with the loop, and a [Tracker] per direction turns the loop's
// edge-triggered readiness notifications into cheap, idempotent polls.
// [Socket.Recv], [Socket.Send], [Socket.Messages] and [Socket.Forward] suspend
// the calling task until the transport can make progress.
package nanogio
