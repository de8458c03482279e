package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStandardLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewStandardLogger(&buf)

	l.Debugf("hidden %d", 1)
	l.Infof("tile %d", 3)
	l.WithPrefix("[rice] ").Warnf("fallback")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "INFO:  tile 3")
	require.Contains(t, lines[1], "[rice] WARN:  fallback")
	require.NotContains(t, buf.String(), "hidden")
}

func TestVerboseLogger(t *testing.T) {
	var buf bytes.Buffer
	NewVerboseLogger(&buf).Debugf("shown")
	require.Contains(t, buf.String(), "DEBUG: shown")
}

func TestBufferLogger(t *testing.T) {
	l := NewBufferLogger()
	l.Warnf("tile %d fell back", 2)
	l.Errorf("tile %d failed", 5)
	l.Debugf("dropped")

	require.Equal(t, "WARN:  tile 2 fell back\nERROR: tile 5 failed\n", l.String())
}

func TestNopLogger(t *testing.T) {
	require.Same(t, NopLogger, NopLogger.WithPrefix("x"))
}
