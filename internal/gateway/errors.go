package gateway

import (
	"net/http"

	"github.com/afreof/dbus-http/internal/jsonvalue"
)

// dbusErrorStatus maps a D-Bus error name to the HTTP status code the
// gateway reports for it. Any name not listed here (including ordinary Go
// errors reported by the local bus client, which carry no D-Bus error name)
// falls back to 500.
var dbusErrorStatus = map[string]int{
	"org.freedesktop.DBus.Error.UnknownMethod":    http.StatusBadRequest,
	"org.freedesktop.DBus.Error.UnknownObject":    http.StatusBadRequest,
	"org.freedesktop.DBus.Error.UnknownInterface": http.StatusBadRequest,
	"org.freedesktop.DBus.Error.UnknownProperty":  http.StatusBadRequest,
	"org.freedesktop.DBus.Error.InvalidSignature": http.StatusBadRequest,
	"org.freedesktop.DBus.Error.InvalidArgs":      http.StatusBadRequest,
	"org.freedesktop.DBus.Error.AccessDenied":     http.StatusForbidden,
	"org.freedesktop.DBus.Error.ServiceUnknown":   http.StatusNotFound,
	"org.freedesktop.DBus.Error.NameHasNoOwner":   http.StatusNotFound,
	"org.freedesktop.DBus.Error.NoReply":          http.StatusRequestTimeout,
	"org.freedesktop.DBus.Error.Timeout":          http.StatusRequestTimeout,
}

// statusForDBusError resolves the HTTP status for a named D-Bus error,
// defaulting to 500 Internal Server Error for anything unrecognized.
func statusForDBusError(name string) int {
	if status, ok := dbusErrorStatus[name]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeJSON writes a JSON value as the full HTTP response body.
func writeJSON(w http.ResponseWriter, status int, value *jsonvalue.Value) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(jsonvalue.MarshalString(value)))
}

// writeError writes the gateway's standard error body: {"error": name}
// with an optional "message" field, matching the reference error response
// shape exactly.
func writeError(w http.ResponseWriter, status int, name, message string) {
	body := jsonvalue.NewObject()
	_ = body.InsertString("error", name)
	if message != "" {
		_ = body.InsertString("message", message)
	}
	writeJSON(w, status, body)
}

// writeDBusError reports a named D-Bus error: the status code comes from
// statusForDBusError(name), and the body carries name and message.
func writeDBusError(w http.ResponseWriter, name, message string) {
	writeError(w, statusForDBusError(name), name, message)
}
