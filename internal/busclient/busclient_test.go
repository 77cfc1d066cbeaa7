package busclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Connect requires a real bus connection (session or system), which is not
// available in a unit test sandbox. These constants are asserted instead so
// a future change to the hard-coded D-Bus interface/method names used for
// introspection and property retrieval is caught immediately.
func TestWireConstantNames(t *testing.T) {
	assert.Equal(t, "org.freedesktop.DBus.Introspectable.Introspect", introspectMethod)
	assert.Equal(t, "org.freedesktop.DBus.Properties.GetAll", propertiesGetAllMethod)
}
