package main

import (
	"context"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// httprouter rejects a static child next to a wildcard in the same
// segment, so the full route set has to register cleanly together.
func TestRegisterBuzzerGameRoutes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := httprouter.New()

	require.NotPanics(t, func() {
		registerBuzzerGame(ctx, testConfig(), "/buzzer", mux)
	})

	for _, path := range []string{
		"/buzzer",
		"/buzzer/ABC123",
		"/buzzer/ABC123/ws",
		"/buzzer/ABC123/qr",
	} {
		handle, _, _ := mux.Lookup("GET", path)
		assert.NotNil(t, handle, "no handler for %s", path)
	}
}
