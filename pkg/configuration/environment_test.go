package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.22\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "LEADIMPORT_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "modules", "leadimport")
	requireMkdirAll(t, sub)

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(sub); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	_ = os.Unsetenv("LEADIMPORT_TEST_ENV_LOAD")

	n, err := LoadEnv([]string{".env", ".env.local"})
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 env file loaded, got %d", n)
	}
	if got := os.Getenv("LEADIMPORT_TEST_ENV_LOAD"); got != "ok" {
		t.Fatalf("expected env var loaded from repo root, got %q", got)
	}
}

func TestOAuthOptions_Validate(t *testing.T) {
	opts := OAuthOptions{StateTTL: 10 * time.Minute, RefreshSkew: 5 * time.Minute, StateStore: "memory"}
	require.NoError(t, opts.Validate())

	opts.StateStore = "memcached"
	require.Error(t, opts.Validate())

	opts.StateStore = "redis"
	opts.StateTTL = 0
	require.Error(t, opts.Validate())
}

func TestImportOptions_Validate(t *testing.T) {
	opts := ImportOptions{
		ProviderTimeout:  time.Minute,
		SampleRows:       5,
		StoredErrors:     100,
		ReturnedErrors:   10,
		BatchListDefault: 20,
		BatchListMax:     100,
	}
	require.NoError(t, opts.Validate())

	opts.BatchListDefault = 101
	require.Error(t, opts.Validate())
}

func TestValidateRLS(t *testing.T) {
	c := &Configuration{RLSEnforce: " Enforce ", Database: DatabaseOptions{User: "app"}}
	require.NoError(t, c.validateRLS())
	require.Equal(t, "enforce", c.RLSEnforce)

	c = &Configuration{RLSEnforce: "enforce", Database: DatabaseOptions{User: "postgres"}}
	require.Error(t, c.validateRLS())
}

func TestIntegrationsURL(t *testing.T) {
	c := &Configuration{FrontendURL: "https://app.example.com/"}
	require.Equal(t, "https://app.example.com/settings/integrations", c.IntegrationsURL())
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func requireMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}
