package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.22\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "HIERARCHY_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "modules", "hierarchy")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(sub))

	_ = os.Unsetenv("HIERARCHY_TEST_ENV_LOAD")
	t.Cleanup(func() { _ = os.Unsetenv("HIERARCHY_TEST_ENV_LOAD") })

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "ok", os.Getenv("HIERARCHY_TEST_ENV_LOAD"))
}

func TestValidateHierarchy(t *testing.T) {
	c := &Configuration{Hierarchy: HierarchyOptions{DiscoveryMaxNodes: 0, OutboxTable: "public.hierarchy_outbox"}}
	require.Error(t, c.validateHierarchy())

	c.Hierarchy.DiscoveryMaxNodes = 10
	c.Hierarchy.OutboxTable = "  "
	require.Error(t, c.validateHierarchy())

	c.Hierarchy.OutboxTable = " public.hierarchy_outbox "
	require.NoError(t, c.validateHierarchy())
	require.Equal(t, "public.hierarchy_outbox", c.Hierarchy.OutboxTable)
}

func TestValidateLogLevel(t *testing.T) {
	c := &Configuration{LogLevel: " INFO "}
	require.NoError(t, c.validateLogLevel())
	require.Equal(t, "info", c.LogLevel)

	c.LogLevel = "verbose"
	require.Error(t, c.validateLogLevel())
}

func TestRateLimitOptions_Validate(t *testing.T) {
	cases := []struct {
		name string
		opts RateLimitOptions
		ok   bool
	}{
		{name: "memory", opts: RateLimitOptions{GlobalRPS: 10, Storage: "memory"}, ok: true},
		{name: "redis", opts: RateLimitOptions{GlobalRPS: 10, Storage: "redis", RedisURL: "redis://localhost:6379/0"}, ok: true},
		{name: "redis without url", opts: RateLimitOptions{GlobalRPS: 10, Storage: "redis"}},
		{name: "negative", opts: RateLimitOptions{GlobalRPS: -1, Storage: "memory"}},
		{name: "too high", opts: RateLimitOptions{GlobalRPS: 2000000, Storage: "memory"}},
		{name: "unknown storage", opts: RateLimitOptions{GlobalRPS: 10, Storage: "disk"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.opts.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
