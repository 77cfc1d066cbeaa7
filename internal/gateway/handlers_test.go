package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/godbus/dbus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus is an in-process stand-in for a real D-Bus connection, playing
// the part of a single service, dbus.http.Calculator, exposed at
// destination "dbus.http.Calculator" and object path "/".
type fakeBus struct {
	introspectXML string
	introspectErr error

	callErr   error
	callName  string
	callArgs  []interface{}
	fillReply func(destPtrs []interface{}) error

	props    map[string]dbus.Variant
	propsErr error
}

func (f *fakeBus) Introspect(ctx context.Context, dest string, path dbus.ObjectPath) (string, error) {
	if f.introspectErr != nil {
		return "", f.introspectErr
	}
	return f.introspectXML, nil
}

func (f *fakeBus) Call(ctx context.Context, dest string, path dbus.ObjectPath, iface, method string, args []interface{}, destPtrs []interface{}) error {
	f.callName = iface + "." + method
	f.callArgs = args
	if f.callErr != nil {
		return f.callErr
	}
	if f.fillReply != nil {
		return f.fillReply(destPtrs)
	}
	return nil
}

func (f *fakeBus) GetAllProperties(ctx context.Context, dest string, path dbus.ObjectPath, iface string) (map[string]dbus.Variant, error) {
	if f.propsErr != nil {
		return nil, f.propsErr
	}
	return f.props, nil
}

const calculatorXML = `
<node>
  <interface name="dbus.http.Calculator">
    <method name="Add">
      <arg name="a" type="i" direction="in"/>
      <arg name="b" type="i" direction="in"/>
      <arg name="sum" type="i" direction="out"/>
    </method>
  </interface>
</node>`

func newTestLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// S1: a well-formed POST call resolves and dispatches successfully.
func TestHandlePostDispatchesResolvedMethod(t *testing.T) {
	bus := &fakeBus{
		introspectXML: calculatorXML,
		fillReply: func(destPtrs []interface{}) error {
			*(destPtrs[0].(*int32)) = 7
			return nil
		},
	}
	srv := NewServer(bus, newTestLogger(), "", "")

	req := httptest.NewRequest(http.MethodPost, "/dbus.http.Calculator/", strings.NewReader(
		`{"interface":"dbus.http.Calculator","method":"Add","arguments":[3,4]}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sum"`)
	assert.Equal(t, "dbus.http.Calculator.Add", bus.callName)
}

// S2: requesting an unknown method resolves to 400.
func TestHandlePostUnknownMethod(t *testing.T) {
	bus := &fakeBus{introspectXML: calculatorXML}
	srv := NewServer(bus, newTestLogger(), "", "")

	req := httptest.NewRequest(http.MethodPost, "/dbus.http.Calculator/", strings.NewReader(
		`{"interface":"dbus.http.Calculator","method":"Subtract","arguments":[]}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No such method")
}

// S3: argument arity mismatch is rejected before a call is dispatched.
func TestHandlePostArityMismatch(t *testing.T) {
	bus := &fakeBus{introspectXML: calculatorXML}
	srv := NewServer(bus, newTestLogger(), "", "")

	req := httptest.NewRequest(http.MethodPost, "/dbus.http.Calculator/", strings.NewReader(
		`{"interface":"dbus.http.Calculator","method":"Add","arguments":[1]}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, bus.callName)
}

// S4: a D-Bus error from the Call step maps through the status table.
func TestHandlePostMapsDBusAccessDenied(t *testing.T) {
	bus := &fakeBus{
		introspectXML: calculatorXML,
		callErr:       dbus.Error{Name: "org.freedesktop.DBus.Error.AccessDenied", Body: []interface{}{"nope"}},
	}
	srv := NewServer(bus, newTestLogger(), "", "")

	req := httptest.NewRequest(http.MethodPost, "/dbus.http.Calculator/", strings.NewReader(
		`{"interface":"dbus.http.Calculator","method":"Add","arguments":[1,2]}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "AccessDenied")
}

// S5: introspection failure (service not present) maps to 404.
func TestHandlePostMapsServiceUnknown(t *testing.T) {
	bus := &fakeBus{
		introspectErr: dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown", Body: []interface{}{"no such service"}},
	}
	srv := NewServer(bus, newTestLogger(), "", "")

	req := httptest.NewRequest(http.MethodPost, "/nobody.home/", strings.NewReader(
		`{"interface":"x","method":"y","arguments":[]}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// S6: a bare GET fetches all properties via Properties.GetAll("").
func TestHandleGetFetchesAllProperties(t *testing.T) {
	bus := &fakeBus{
		props: map[string]dbus.Variant{
			"Label": dbus.MakeVariant("hello"),
		},
	}
	srv := NewServer(bus, newTestLogger(), "", "")

	req := httptest.NewRequest(http.MethodGet, "/dbus.http.Calculator/", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hello")
}

func TestParseURLSplitsDestinationAndObject(t *testing.T) {
	dest, obj, err := parseURL("/dbus.http.Calculator/some/deep/path")
	require.NoError(t, err)
	assert.Equal(t, "dbus.http.Calculator", dest)
	assert.Equal(t, dbus.ObjectPath("/some/deep/path"), obj)
}

func TestParseURLDefaultsObjectToRoot(t *testing.T) {
	dest, obj, err := parseURL("/dbus.http.Calculator")
	require.NoError(t, err)
	assert.Equal(t, "dbus.http.Calculator", dest)
	assert.Equal(t, dbus.ObjectPath("/"), obj)
}

func TestParseURLRejectsMissingLeadingSlash(t *testing.T) {
	_, _, err := parseURL("no-leading-slash")
	assert.Error(t, err)
}

func TestWriteBusErrorFallsBackTo500ForGenericError(t *testing.T) {
	w := httptest.NewRecorder()
	s := &Server{log: newTestLogger()}
	s.writeBusError(w, fmt.Errorf("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReflectNewProducesAddressableZeroValue(t *testing.T) {
	ptr := reflectNew(reflect.TypeOf(int32(0)))
	v, ok := ptr.(*int32)
	require.True(t, ok)
	assert.Equal(t, int32(0), *v)
}
