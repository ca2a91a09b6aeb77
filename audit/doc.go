// Package audit records security-relevant events.
//
// # Components
//
//   - [Log] persists events per user (append-only, most recent first on read)
//     and forwards each one to a [Sink].
//   - [Sink] consumes events: [ChannelSink], [JSONWriterSink], [SlogSink],
//     [NoOpSink].
//   - [Dispatcher] relays events to a sink asynchronously with drop-if-full or
//     block-if-full buffering.
//
// # Failure policy
//
// Recording never fails the caller. Persistence and encoding failures are
// reported through the logger and the Log's failure counter.
//
// # What this package must NOT do
//
//   - Decide which events to emit. That belongs to the engine.
//   - Carry secrets. Details must never contain passwords, codes or keys.
package audit
