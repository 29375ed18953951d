package domain

// StatusSink receives human-readable progress messages. Implementations
// must not block for long and must not panic.
type StatusSink interface {
	Status(msg string)
}

// StatusFunc adapts a plain function to StatusSink.
type StatusFunc func(msg string)

// Status calls f(msg).
func (f StatusFunc) Status(msg string) { f(msg) }

// Discard drops every message.
var Discard StatusSink = StatusFunc(func(string) {})

// ChannelSink forwards messages to a channel, typically drained by a UI
// loop. A message is dropped when the channel buffer is full so the
// sender never waits on the receiver.
type ChannelSink chan<- string

// Status sends msg without blocking.
func (c ChannelSink) Status(msg string) {
	select {
	case c <- msg:
	default:
	}
}
