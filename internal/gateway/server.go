// Package gateway implements the HTTP surface of the bridge: request
// routing, the per-request state machine, and the JSON error vocabulary
// returned to HTTP clients.
package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/godbus/dbus"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Bus is the subset of busclient.Bus the gateway depends on. It is defined
// here, at the point of use, so tests can exercise the HTTP surface and the
// request state machine against a fake bus without a real D-Bus daemon.
type Bus interface {
	Introspect(ctx context.Context, dest string, path dbus.ObjectPath) (string, error)
	Call(ctx context.Context, dest string, path dbus.ObjectPath, iface, method string, args []interface{}, destPtrs []interface{}) error
	GetAllProperties(ctx context.Context, dest string, path dbus.ObjectPath, iface string) (map[string]dbus.Variant, error)
}

// Server holds the long-lived state shared by every request: the bus
// connection, a logger, and the URL prefix under which bus requests are
// routed. Each request still gets its own requestMachine (see
// orchestrator.go) so no per-request state lives here.
type Server struct {
	bus    Bus
	log    *logrus.Entry
	prefix string
}

// NewServer builds an http.Handler that serves the gateway's GET/POST
// surface over bus, rooted at prefix (e.g. "/dbus"). Requests outside the
// prefix fall through to a static file server rooted at staticDir, the
// stdlib-correct stand-in for the out-of-scope static-file collaborator
// named in the purpose/scope section; an empty staticDir disables it and
// such requests 404.
func NewServer(bus Bus, log *logrus.Entry, prefix, staticDir string) http.Handler {
	s := &Server{bus: bus, log: log, prefix: strings.TrimSuffix(prefix, "/")}

	router := mux.NewRouter()
	busPrefix := s.prefix
	if busPrefix == "" {
		busPrefix = "/"
	}
	router.PathPrefix(busPrefix).Methods(http.MethodGet).HandlerFunc(s.handleGet)
	router.PathPrefix(busPrefix).Methods(http.MethodPost).HandlerFunc(s.handlePost)
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	})
	router.MethodNotAllowedHandler = methodNotAllowed

	if staticDir != "" {
		router.NotFoundHandler = http.FileServer(http.Dir(staticDir))
	} else {
		router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "Not found", "")
		})
	}

	return loggingMiddleware(log, router)
}

// loggingMiddleware logs one structured line per request, tagged with a
// freshly generated request id. Only this line carries the id: the
// handlers log through the Server's own logger, so their lines for the
// introspect and dispatch steps have no request_id field.
func loggingMiddleware(log *logrus.Entry, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		entry := log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
		})
		entry.Debug("handling request")
		next.ServeHTTP(w, r)
	})
}
