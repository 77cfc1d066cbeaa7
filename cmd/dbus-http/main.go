package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/afreof/dbus-http/internal/busclient"
	"github.com/afreof/dbus-http/internal/gateway"
)

// maxPort mirrors the reference CLI's port ceiling: ports above it are
// reserved for the kernel's ephemeral port range.
const maxPort = 32767

var (
	sessionBus bool
	httpPort   uint16
	logLevel   string
	urlPrefix  string
	staticDir  string
)

func main() {
	root := &cobra.Command{
		Use:   "dbus-http",
		Short: "Bridge HTTP/JSON requests onto a D-Bus connection",
		RunE:  run,
	}

	root.Flags().BoolVarP(&sessionBus, "session", "s", false, "connect to the session bus instead of the system bus")
	root.Flags().Uint16VarP(&httpPort, "port", "p", 8080, fmt.Sprintf("HTTP port, 0..%d", maxPort))
	root.Flags().StringVarP(&logLevel, "log-level", "v", "info", "log level (emerg, alert, crit, err, warning, notice, info, debug)")
	root.Flags().StringVar(&urlPrefix, "prefix", "/dbus", "URL prefix the bus gateway is mounted under")
	root.Flags().StringVar(&staticDir, "static", "", "static file root served outside --prefix (disabled if empty)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if httpPort > maxPort {
		return fmt.Errorf("port must be 0..%d (upper ports are reserved for random port numbers assigned by the OS)", maxPort)
	}

	level, err := gateway.ParseLogLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	log := logger.WithField("component", "dbus-http")

	busKind := "system"
	if sessionBus {
		busKind = "session"
	}
	log.WithFields(logrus.Fields{"bus": busKind, "port": httpPort, "prefix": urlPrefix}).Info("starting dbus-http")

	bus, err := busclient.Connect(sessionBus, log)
	if err != nil {
		return fmt.Errorf("connecting to %s bus: %w", busKind, err)
	}
	defer bus.Close()

	handler := gateway.NewServer(bus, log, urlPrefix, staticDir)

	addr := fmt.Sprintf(":%d", httpPort)
	log.WithField("addr", addr).Info("listening")
	return http.ListenAndServe(addr, handler)
}
