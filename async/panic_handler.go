package async

// PanicHandler is invoked with the recovered value when a goroutine managed
// by this module panics.
type PanicHandler interface {
	HandlePanic(r any)
}

// NoopPanicHandler swallows the panic.
type NoopPanicHandler struct{}

func (NoopPanicHandler) HandlePanic(any) {}

// HandlePanic recovers an in-flight panic and forwards it to the handler.
// A nil handler re-raises. Must be called directly from a deferred call.
func HandlePanic(handler PanicHandler) {
	r := recover()
	if r == nil {
		return
	}

	if handler == nil {
		panic(r)
	}

	handler.HandlePanic(r)
}
