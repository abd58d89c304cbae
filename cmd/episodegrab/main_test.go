package main

import (
	"bytes"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagsOverrideConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  dir: /from/config\nlog:\n  level: warn\n"), 0644))

	fs := flag.NewFlagSet("episodegrab", flag.ContinueOnError)
	o, err := parseFlags(fs, []string{"-config", path, "-show", "Severance", "-ffmpeg", "/opt/ffmpeg", "-bind", ":9090", "-serve"})
	require.NoError(t, err)
	assert.Equal(t, "Severance", o.show)
	assert.True(t, o.serve)

	cfg, err := loadConfig(o)
	require.NoError(t, err)
	assert.Equal(t, "/from/config", cfg.Download.Dir)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/opt/ffmpeg", cfg.FFmpeg.Path)
	assert.Equal(t, ":9090", cfg.Server.Bind)

	o.dir = "/from/flag"
	o.logLevel = "debug"
	cfg, err = loadConfig(o)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.Download.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParseFlagsUnknown(t *testing.T) {
	fs := flag.NewFlagSet("episodegrab", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	_, err := parseFlags(fs, []string{"-nope"})
	assert.Error(t, err)
}

func TestLoadConfigBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [\n"), 0644))
	_, err := loadConfig(options{config: path})
	assert.Error(t, err)
}

func TestPromptShow(t *testing.T) {
	var out bytes.Buffer
	name, err := promptShow(strings.NewReader("  The Bear \n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "The Bear", name)
	assert.Equal(t, "Enter the TV show name: ", out.String())

	name, err = promptShow(strings.NewReader("Dark"), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "Dark", name)

	_, err = promptShow(strings.NewReader("\n"), io.Discard)
	assert.Error(t, err)
}
