package logs

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, parseLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, parseLevel("warn"))
	assert.Equal(t, logrus.WarnLevel, parseLevel("warning"))
	assert.Equal(t, logrus.InfoLevel, parseLevel(""))
	assert.Equal(t, logrus.InfoLevel, parseLevel("nonsense"))
}

func TestInit_JSONFormat(t *testing.T) {
	require.NoError(t, Init(Options{Level: "debug", Format: "json"}))

	var buf bytes.Buffer
	Logger.SetOutput(&buf)
	Logger.WithField("note_id", 7).Info("signed")

	out := buf.String()
	assert.Contains(t, out, `"msg":"signed"`)
	assert.Contains(t, out, `"note_id":7`)
	assert.Equal(t, logrus.DebugLevel, Logger.GetLevel())
}
