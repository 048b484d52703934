package harness

import (
	"fmt"
	"net"
	"testing"

	"github.com/launchdarkly/browser-contract-tests/browser"
	"github.com/launchdarkly/browser-contract-tests/browser/fakebrowser"
	"github.com/launchdarkly/browser-contract-tests/config"

	"github.com/spf13/afero"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"

	"github.com/stretchr/testify/require"
)

const emptyPage = "<!DOCTYPE html>\n"

type testSetup struct {
	cfg      config.Config
	fs       afero.Fs
	launcher *fakebrowser.Launcher
	env      *Environment
}

func newTestSetup(t *testing.T, product browser.Product, loggers ldlog.Loggers) *testSetup {
	t.Helper()
	fs := afero.NewMemMapFs()
	launcher := fakebrowser.NewLauncher(product)
	require.NoError(t, afero.WriteFile(fs, launcher.Path, []byte("binary"), 0o755))
	require.NoError(t, afero.WriteFile(fs, "/assets/empty.html", []byte(emptyPage), 0o644))

	cfg := config.Config{
		Product:     product,
		Headless:    true,
		FixturePort: freePortPair(t),
		AssetsDir:   "/assets",
		GoldenRoot:  "/testdata",
	}
	env, err := NewEnvironment(cfg, launcher, fs, loggers)
	require.NoError(t, err)
	return &testSetup{cfg: cfg, fs: fs, launcher: launcher, env: env}
}

func freePortPair(t *testing.T) int {
	t.Helper()
	for i := 0; i < 50; i++ {
		ln, err := net.Listen("tcp", ":0")
		require.NoError(t, err)
		port := ln.Addr().(*net.TCPAddr).Port
		_ = ln.Close()
		if port < 65535 && isPortAvailable(port) && isPortAvailable(port+1) {
			return port
		}
	}
	t.Fatalf("no available port pair")
	return 0
}

func isPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
