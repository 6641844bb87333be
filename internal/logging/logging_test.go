package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/racktables-migrator/internal/config"
)

func TestNew_TextAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrator.log")
	var buf bytes.Buffer
	log, closeFn, err := New(config.Log{Level: "debug", File: path}, &buf)
	require.NoError(t, err)

	log.WithField("type", "site").Debug("CREATED: DC1")
	require.NoError(t, closeFn())

	assert.Contains(t, buf.String(), "CREATED: DC1")
	assert.Contains(t, buf.String(), "type=site")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATED: DC1")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(config.Log{Level: "info", JSON: true}, &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.WithField("run", "abc").Info("Target OK")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Target OK", line["msg"])
	assert.Equal(t, "abc", line["run"])
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New(config.Log{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestForJob(t *testing.T) {
	var buf bytes.Buffer
	base, _, err := New(config.Log{Level: "info"}, &buf)
	require.NoError(t, err)

	var lines []string
	log := ForJob(base, func(l string) { lines = append(lines, l) })
	log.Info("=== Stage 1: site ===")
	log.Debug("not at this level")

	require.Len(t, lines, 1)
	assert.Equal(t, "level=info msg==== Stage 1: site ===", lines[0])
	assert.Contains(t, buf.String(), "Stage 1")
}
