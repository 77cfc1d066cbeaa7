// Package busclient is the gateway's thin façade over a D-Bus connection:
// connect to the session or system bus, introspect a remote object, and
// invoke one of its methods. Each HTTP request already runs on its own
// goroutine (net/http's natural concurrency model), so a bus round trip is
// simply a blocking call from that goroutine rather than a callback chain.
package busclient

import (
	"context"
	"fmt"

	"github.com/godbus/dbus"
	introspectwire "github.com/godbus/dbus/introspect"
	"github.com/sirupsen/logrus"
)

const introspectInterface = "org.freedesktop.DBus.Introspectable"
const introspectMethod = introspectInterface + ".Introspect"
const propertiesInterface = "org.freedesktop.DBus.Properties"
const propertiesGetAllMethod = propertiesInterface + ".GetAll"

// Bus wraps a connected *dbus.Conn for the lifetime of the gateway process.
type Bus struct {
	conn *dbus.Conn
	log  *logrus.Entry
}

// Connect opens a connection to either the session or the system bus,
// mirroring the reference gateway's -s/--session flag.
func Connect(session bool, log *logrus.Entry) (*Bus, error) {
	var conn *dbus.Conn
	var err error
	if session {
		conn, err = dbus.SessionBus()
	} else {
		conn, err = dbus.SystemBus()
	}
	if err != nil {
		return nil, fmt.Errorf("busclient: connecting to bus: %w", err)
	}
	return &Bus{conn: conn, log: log}, nil
}

// Close releases the underlying bus connection.
func (b *Bus) Close() error {
	return b.conn.Close()
}

// Introspect fetches and returns the raw introspection XML for an object.
func (b *Bus) Introspect(ctx context.Context, dest string, path dbus.ObjectPath) (string, error) {
	obj := b.conn.Object(dest, path)
	var xmlDoc string
	call := obj.CallWithContext(ctx, introspectMethod, 0)
	if call.Err != nil {
		return "", fmt.Errorf("busclient: introspect %s %s: %w", dest, path, call.Err)
	}
	if err := call.Store(&xmlDoc); err != nil {
		return "", fmt.Errorf("busclient: decoding introspection reply: %w", err)
	}
	return xmlDoc, nil
}

// IntrospectNode fetches an object's introspection document and parses it
// with the wire-format introspect package godbus ships. The gateway's
// handlers do not call it: they fetch the document with Introspect and
// parse it with the hand-rolled parser in package introspect.
func (b *Bus) IntrospectNode(ctx context.Context, dest string, path dbus.ObjectPath) (*introspectwire.Node, error) {
	xmlDoc, err := b.Introspect(ctx, dest, path)
	if err != nil {
		return nil, err
	}
	node, err := introspectwire.Parse(xmlDoc)
	if err != nil {
		return nil, fmt.Errorf("busclient: parsing introspection xml: %w", err)
	}
	return node, nil
}

// Call invokes a single method and stores its positional return values into
// dest_ptrs, one pointer per out-argument; it returns only an error. The
// caller allocates those pointers from package busconv's types so godbus
// performs a typed decode instead of its generic one, then decodes each
// value into JSON with busconv.
func (b *Bus) Call(ctx context.Context, dest string, path dbus.ObjectPath, iface, method string, args []interface{}, dest_ptrs []interface{}) error {
	obj := b.conn.Object(dest, path)
	call := obj.CallWithContext(ctx, iface+"."+method, 0, args...)
	if call.Err != nil {
		return call.Err
	}
	if len(dest_ptrs) == 0 {
		return nil
	}
	if err := call.Store(dest_ptrs...); err != nil {
		return fmt.Errorf("busclient: decoding reply: %w", err)
	}
	return nil
}

// GetAllProperties calls org.freedesktop.DBus.Properties.GetAll on an
// object for the given interface name (an empty string is a valid and
// common argument meaning "every interface the object implements").
func (b *Bus) GetAllProperties(ctx context.Context, dest string, path dbus.ObjectPath, iface string) (map[string]dbus.Variant, error) {
	obj := b.conn.Object(dest, path)
	var props map[string]dbus.Variant
	call := obj.CallWithContext(ctx, propertiesGetAllMethod, 0, iface)
	if call.Err != nil {
		return nil, call.Err
	}
	if err := call.Store(&props); err != nil {
		return nil, fmt.Errorf("busclient: decoding properties reply: %w", err)
	}
	return props, nil
}
