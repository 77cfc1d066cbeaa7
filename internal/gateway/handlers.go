package gateway

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/godbus/dbus"
	"github.com/sirupsen/logrus"

	"github.com/afreof/dbus-http/internal/busconv"
	"github.com/afreof/dbus-http/internal/introspect"
	"github.com/afreof/dbus-http/internal/jsonvalue"
)

// parseURL splits an HTTP request path into a bus destination name and an
// object path, the same way the reference gateway's URL parser does: the
// first path segment names the destination, everything after it (including
// its leading slash) is the object path, defaulting to "/" when the URL has
// no second segment.
func parseURL(path string) (destination string, object dbus.ObjectPath, err error) {
	if len(path) == 0 || path[0] != '/' {
		return "", "", fmt.Errorf("gateway: url must start with '/'")
	}
	rest := path[1:]
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return rest[:idx], dbus.ObjectPath(rest[idx:]), nil
	}
	return rest, dbus.ObjectPath("/"), nil
}

// stripPrefix removes the server's configured URL prefix from path, so
// parseURL always sees the destination as its first segment regardless of
// where in the URL space the gateway is mounted.
func (s *Server) stripPrefix(path string) string {
	if s.prefix == "" {
		return path
	}
	trimmed := strings.TrimPrefix(path, s.prefix)
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// handleGet serves GET /<destination><object>: a bare property fetch via
// org.freedesktop.DBus.Properties.GetAll("").
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	dest, path, err := parseURL(s.stripPrefix(r.URL.Path))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	rm := newRequestMachine()

	if _, err := rm.Suspend(); err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}

	props, err := s.bus.GetAllProperties(r.Context(), dest, path, "")
	if err != nil {
		s.writeBusError(w, err)
		return
	}

	reply := jsonvalue.NewObject()
	for name, variant := range props {
		value, err := busconv.DecodeElement(reflect.ValueOf(variant.Value()), variant.Signature().String())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
			return
		}
		if err := reply.Insert(name, value); err != nil {
			writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
			return
		}
	}

	if _, err := rm.Finalize(); err != nil {
		s.log.WithError(err).Warn("request reached an invalid final state")
	}
	writeJSON(w, http.StatusOK, reply)
}

// methodCallRequest is the parsed shape of a POST body: the target
// interface and method name, and the JSON array of positional arguments.
type methodCallRequest struct {
	Interface string
	Method    string
	Arguments *jsonvalue.Value
}

func parseMethodCallRequest(body []byte) (*methodCallRequest, error) {
	v, err := jsonvalue.Parse(string(body), jsonvalue.Object, true)
	if err != nil {
		return nil, fmt.Errorf("gateway: body is not a JSON object: %w", err)
	}

	iface, ok := v.LookupString("interface")
	if !ok {
		return nil, fmt.Errorf("gateway: missing \"interface\"")
	}
	method, ok := v.LookupString("method")
	if !ok {
		return nil, fmt.Errorf("gateway: missing \"method\"")
	}
	args, ok := v.Lookup("arguments", jsonvalue.Array, true)
	if !ok {
		return nil, fmt.Errorf("gateway: missing \"arguments\" array")
	}

	return &methodCallRequest{Interface: iface, Method: method, Arguments: args}, nil
}

// handlePost serves POST /<destination><object>: introspects the target
// object, resolves the requested interface/method, and dispatches the call.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	dest, path, err := parseURL(s.stripPrefix(r.URL.Path))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid request", "missing request body")
		return
	}

	req, err := parseMethodCallRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	rm := newRequestMachine()

	if _, err := rm.Suspend(); err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}

	xmlDoc, err := s.bus.Introspect(r.Context(), dest, path)
	if err != nil {
		s.writeBusError(w, err)
		return
	}

	node, err := introspect.Parse(xmlDoc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error", "malformed introspection document")
		return
	}

	if _, err := rm.MarkIntrospected(); err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}

	method, ok := node.FindMethod(req.Interface, req.Method)
	if !ok {
		writeError(w, http.StatusBadRequest, "No such method", "")
		return
	}

	callArgs, err := busconv.EncodeArgs(method.InArgs, req.Arguments)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	destPtrs := make([]interface{}, len(method.OutArgs))
	for i, arg := range method.OutArgs {
		goType, err := busconv.GoType(arg.Type)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
			return
		}
		destPtrs[i] = reflectNew(goType)
	}

	if _, err := rm.MarkDispatched(); err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}

	if err := s.bus.Call(r.Context(), dest, path, req.Interface, req.Method, callArgs, destPtrs); err != nil {
		s.writeBusError(w, err)
		return
	}

	values := make([]reflect.Value, len(destPtrs))
	for i, ptr := range destPtrs {
		values[i] = reflect.ValueOf(ptr).Elem()
	}
	reply, err := busconv.DecodeReply(method.OutArgs, values)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}

	if _, err := rm.Finalize(); err != nil {
		s.log.WithError(err).Warn("request reached an invalid final state")
	}
	writeJSON(w, http.StatusOK, reply)
}

func reflectNew(t reflect.Type) interface{} {
	return reflect.New(t).Interface()
}

// writeBusError reports a bus-layer failure, preferring the D-Bus error
// name godbus attaches to a dbus.Error over a generic 500.
func (s *Server) writeBusError(w http.ResponseWriter, err error) {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		message := ""
		if len(dbusErr.Body) > 0 {
			if msg, ok := dbusErr.Body[0].(string); ok {
				message = msg
			}
		}
		s.log.WithFields(logrus.Fields{"dbus_error": dbusErr.Name}).Info("bus call returned an error")
		writeDBusError(w, dbusErr.Name, message)
		return
	}
	s.log.WithError(err).Error("bus call failed")
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
