package async

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	recovered any
}

func (h *recordingHandler) HandlePanic(r any) {
	h.recovered = r
}

func TestHandlePanic(t *testing.T) {
	handler := &recordingHandler{}

	require.NotPanics(t, func() {
		defer HandlePanic(handler)
		panic("there")
	})

	require.Equal(t, "there", handler.recovered)

	require.NotPanics(t, func() {
		defer HandlePanic(NoopPanicHandler{})
		panic("where")
	})

	require.PanicsWithValue(t, "everywhere", func() {
		defer HandlePanic(nil)
		panic("everywhere")
	})

	// No panic, nothing to handle.
	require.NotPanics(t, func() {
		defer HandlePanic(nil)
	})
}
