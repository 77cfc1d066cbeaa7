package gateway

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// logLevels mirrors log.c's level table: eight named levels, most to least
// severe, mapped onto six of logrus's levels. logrus has no separate emerg/alert/crit
// tier, so all three collapse onto Panic/Fatal/Fatal the same way the
// reference implementation's own levels above "err" are rarely used in
// practice; notice has no logrus equivalent either and maps to Info
// alongside info itself.
var logLevels = map[string]logrus.Level{
	"emerg":   logrus.PanicLevel,
	"alert":   logrus.FatalLevel,
	"crit":    logrus.FatalLevel,
	"err":     logrus.ErrorLevel,
	"warning": logrus.WarnLevel,
	"notice":  logrus.InfoLevel,
	"info":    logrus.InfoLevel,
	"debug":   logrus.DebugLevel,
}

// ParseLogLevel accepts either one of the eight log.c level names or a
// logrus level name (logrus.ParseLevel's own vocabulary), so operators
// carrying over a log.c-style `-v` value and operators used to logrus's own
// names both get a working flag.
func ParseLogLevel(name string) (logrus.Level, error) {
	if level, ok := logLevels[name]; ok {
		return level, nil
	}
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}
