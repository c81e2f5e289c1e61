package emit

// NullEmitter discards all events. It is the default when no emitter is
// configured, so the engine never has to nil-check before emitting.
type NullEmitter struct{}

// NewNullEmitter creates a NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(Event) {}
