package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		goos string
		want Profile
	}{
		{"linux", Profile{Name: "linux", ArchiveSuffix: "linux64", POSIX: true}},
		{"windows", Profile{Name: "windows", ExecSuffix: ".exe", ArchiveSuffix: "win32"}},
		{"macos", Profile{Name: "macos", ArchiveSuffix: "mac64", POSIX: true}},
		{"darwin", Profile{Name: "darwin", ArchiveSuffix: "mac64", POSIX: true}},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			got, err := Resolve(tt.goos)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve(%q) mismatch (-want +got):\n%s", tt.goos, diff)
			}
		})
	}
}

func TestResolve_Unsupported(t *testing.T) {
	for _, goos := range []string{"freebsd", "plan9", "", "Windows"} {
		_, err := Resolve(goos)
		assert.ErrorIs(t, err, ErrUnsupportedPlatform, "goos %q", goos)
	}
}

func TestExecutable(t *testing.T) {
	win, _ := Resolve("windows")
	lin, _ := Resolve("linux")
	assert.Equal(t, "chromedriver_PATCHED.exe", win.Executable("chromedriver_PATCHED"))
	assert.Equal(t, "chromedriver_PATCHED", lin.Executable("chromedriver_PATCHED"))
}

func TestMakeExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chromedriver")
	require.NoError(t, os.WriteFile(path, []byte("bin"), 0o600))

	t.Run("non POSIX is a no-op", func(t *testing.T) {
		win, _ := Resolve("windows")
		require.NoError(t, win.MakeExecutable(filepath.Join(t.TempDir(), "missing.exe")))
	})

	t.Run("POSIX sets 0755", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("permission bits are not meaningful on windows")
		}
		lin, _ := Resolve("linux")
		require.NoError(t, lin.MakeExecutable(path))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, ExecutableMode, info.Mode().Perm())
	})

	t.Run("POSIX reports missing files", func(t *testing.T) {
		lin, _ := Resolve("linux")
		assert.Error(t, lin.MakeExecutable(filepath.Join(t.TempDir(), "missing")))
	})
}
