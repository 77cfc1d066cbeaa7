package gateway

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevelAcceptsOriginalNames(t *testing.T) {
	level, err := ParseLogLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, level)

	level, err = ParseLogLevel("emerg")
	require.NoError(t, err)
	assert.Equal(t, logrus.PanicLevel, level)
}

func TestParseLogLevelAcceptsLogrusNames(t *testing.T) {
	level, err := ParseLogLevel("trace")
	require.NoError(t, err)
	assert.Equal(t, logrus.TraceLevel, level)
}

func TestParseLogLevelRejectsUnknown(t *testing.T) {
	_, err := ParseLogLevel("not-a-level")
	assert.Error(t, err)
}
