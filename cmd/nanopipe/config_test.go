package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) (*flags, *pflag.FlagSet) {
	t.Helper()
	f := new(flags)
	set := pflag.NewFlagSet("nanopipe", pflag.ContinueOnError)
	f.register(set)
	require.NoError(t, set.Parse(args))
	return f, set
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nanopipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFlags_Defaults(t *testing.T) {
	f, set := parseFlags(t)
	require.NoError(t, f.load(set))
	require.Equal(t, defaultAddress, f.Address)
	require.Equal(t, defaultMessage, f.Message)
	require.Zero(t, f.Count)
	require.Zero(t, f.Interval)
	require.Equal(t, "info", f.LogLevel)
}

func TestFlags_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
address: inproc://from-file
message: hello
count: 10
interval: 250ms
log_level: debug
`)

	f, set := parseFlags(t, "--config", path, "--count", "3")
	require.NoError(t, f.load(set))
	require.Equal(t, "inproc://from-file", f.Address)
	require.Equal(t, "hello", f.Message)
	require.Equal(t, 3, f.Count, "command line wins over the file")
	require.Equal(t, 250*time.Millisecond, f.Interval)
	require.Equal(t, "debug", f.LogLevel)
}

func TestFlags_Invalid(t *testing.T) {
	f, set := parseFlags(t, "--count", "-1")
	require.Error(t, f.load(set))

	f, set = parseFlags(t, "--log-level", "loud")
	require.Error(t, f.load(set))

	f, set = parseFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, f.load(set))

	f, set = parseFlags(t, "--config", writeConfig(t, "count: [1, 2]"))
	require.Error(t, f.load(set))
}
