// Package repeater turns an arbitrary callback-driven producer into a
// lazily-started, consumer-pull asynchronous sequence with bounded
// buffering, backpressure, cancellation and error propagation.
//
// A Stream is constructed with a producer closure and an optional Buffer.
// The producer is invoked on the first call to Next, receives a push
// handle, a close handle and a stop signal, and may push values, close
// the stream, and observe the stop signal to clean up. Consumers pull
// values with Next, and may abort early with Return or fault the stream
// with Throw.
package repeater
