// File: cmd/cmd_test.go
package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebeka/selenium"

	"github.com/xkilldash9x/ghostdriver/internal/config"
	"github.com/xkilldash9x/ghostdriver/internal/driver"
	"github.com/xkilldash9x/ghostdriver/internal/platform"
	"github.com/xkilldash9x/ghostdriver/internal/provision"
)

const testRelease = "114.0.5735.90"

// -- Test Helpers --

type cannedFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  []string
}

func (f *cannedFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if body, ok := f.bodies[url]; ok {
		return body, nil
	}
	return nil, fmt.Errorf("unexpected url %s", url)
}

func zipOf(t *testing.T, name, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func releaseFor(t *testing.T, goos, body string) *cannedFetcher {
	t.Helper()
	profile, err := platform.Resolve(goos)
	require.NoError(t, err)
	base := provision.DefaultReleaseURL
	return &cannedFetcher{bodies: map[string][]byte{
		base + "/LATEST_RELEASE": []byte(testRelease + "\n"),
		fmt.Sprintf("%s/%s/chromedriver_%s.zip", base, testRelease, profile.ArchiveSuffix): zipOf(t, profile.Executable("chromedriver"), body),
	}}
}

// withDriver swaps the pipeline constructor for the duration of the test.
func withDriver(t *testing.T, opts driver.Options) {
	t.Helper()
	original := newDriver
	newDriver = func(cfg config.Interface) *driver.Driver { return driver.New(cfg, opts) }
	t.Cleanup(func() { newDriver = original })
}

// executeCommand runs a fresh command tree and returns its combined output.
func executeCommand(ctx context.Context, args ...string) (string, error) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

type stubWebDriver struct {
	selenium.WebDriver
	quits int
}

func (s *stubWebDriver) SessionID() string { return "cli-session" }

func (s *stubWebDriver) Quit() error {
	s.quits++
	return nil
}

type stubFactory struct{ wd *stubWebDriver }

func (f stubFactory) NewSession(selenium.Capabilities, string) (selenium.WebDriver, error) {
	return f.wd, nil
}

// -- Tests --

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := executeCommand(context.Background(), "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ghostdriver "+Version)
	assert.Contains(t, out, runtime.GOOS)
}

func TestRootCmd_MalformedConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("driver: [unclosed"), 0o600))

	_, err := executeCommand(context.Background(), "patch", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize configuration")
}

func TestRootCmd_InvalidEnvironmentConfig(t *testing.T) {
	t.Setenv("GHOSTDRIVER_LAUNCH_PORT_MIN", "6000")
	t.Setenv("GHOSTDRIVER_LAUNCH_PORT_MAX", "5000")

	_, err := executeCommand(context.Background(), "patch", "--work-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load or validate config")
}

func TestPatchCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	fetcher := releaseFor(t, "linux", "xxcdc_AAAAAAAAAAAAAAAAAAxxcdc_BBBBBBBBBBBBBBBBBBxx")
	withDriver(t, driver.Options{GOOS: "linux", Fetcher: fetcher})

	out, err := executeCommand(context.Background(), "patch", "--json", "--work-dir", dir)
	require.NoError(t, err)

	var result patchResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Ready)
	assert.Equal(t, filepath.Join(dir, "chromedriver_PATCHED"), result.Patched)
	require.NotNil(t, result.Report)
	assert.Equal(t, 2, result.Report.Patched)
	assert.Equal(t, []int{2, 26}, result.Report.Offsets)
	assert.Len(t, fetcher.calls, 2)

	// A second run finds the patched file and does no work.
	out, err = executeCommand(context.Background(), "patch", "--json", "--work-dir", dir)
	require.NoError(t, err)
	result = patchResult{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Ready)
	assert.Nil(t, result.Report)
	assert.Len(t, fetcher.calls, 2)
}

func TestPatchCommand_Force(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chromedriver"), []byte("cdc_"+strings.Repeat("z", 30)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chromedriver_PATCHED"), []byte("stale"), 0o755))
	withDriver(t, driver.Options{GOOS: "linux", Fetcher: &cannedFetcher{}})

	out, err := executeCommand(context.Background(), "patch", "--work-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "already patched")

	out, err = executeCommand(context.Background(), "patch", "--force", "--work-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "patched 1 cdc marker(s)")

	patched, err := os.ReadFile(filepath.Join(dir, "chromedriver_PATCHED"))
	require.NoError(t, err)
	assert.Len(t, patched, 34)
	assert.NotContains(t, string(patched), "cdc_")
}

func TestFetchCommand(t *testing.T) {
	dir := t.TempDir()
	fetcher := releaseFor(t, "windows", "driver bytes")
	withDriver(t, driver.Options{GOOS: "windows", Fetcher: fetcher})

	out, err := executeCommand(context.Background(), "fetch", "--check", "--work-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, testRelease+"\n", out)
	assert.NoFileExists(t, filepath.Join(dir, "chromedriver.exe"))

	out, err = executeCommand(context.Background(), "fetch", "--work-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "chromedriver "+testRelease+" extracted")
	assert.FileExists(t, filepath.Join(dir, "chromedriver.exe"))
	assert.NoFileExists(t, filepath.Join(dir, "chromedriver_PATCHED.exe"), "fetch never patches")
}

func TestLaunchCommand_UnsupportedPlatform(t *testing.T) {
	fetcher := &cannedFetcher{}
	withDriver(t, driver.Options{GOOS: "solaris", Fetcher: fetcher})

	_, err := executeCommand(context.Background(), "launch", "--work-dir", t.TempDir())
	assert.True(t, errors.Is(err, platform.ErrUnsupportedPlatform))
	assert.Empty(t, fetcher.calls)
}

func TestLaunchCommand_QuitOnExit(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("the fake driver is a POSIX shell script")
	}
	script := "#!/bin/sh\n# cdc_" + strings.Repeat("q", 30) + "\nexec sleep 30\n"
	wd := &stubWebDriver{}
	withDriver(t, driver.Options{
		Fetcher: releaseFor(t, runtime.GOOS, script),
		Factory: stubFactory{wd: wd},
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	})

	// Already interrupted: the session opens and is closed straight away.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := executeCommand(ctx, "launch", "--quit-on-exit", "--work-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "session cli-session ready on http://localhost:")
	assert.Equal(t, 1, wd.quits)
}
