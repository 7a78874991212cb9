// Package bridge forwards service events to whoever embeds the engine: the
// HTTP server, the CLI or a test.
package bridge

import "sync/atomic"

type NotifyFunc func(topic string, payload string)

var impl atomic.Pointer[NotifyFunc]

// SetNotifyImpl installs the event sink. nil removes it.
func SetNotifyImpl(f NotifyFunc) {
	if f == nil {
		impl.Store(nil)
		return
	}
	impl.Store(&f)
}

// Notify sends an event to the installed sink, if any.
func Notify(topic string, payload string) {
	if f := impl.Load(); f != nil {
		(*f)(topic, payload)
	}
}
