package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/musicsnap/internal/config"
	"github.com/roach88/musicsnap/internal/testutil"
)

// testEnv is an isolated workspace wired through environment variables.
type testEnv struct {
	api     *testutil.StatsAPI
	root    *RootOptions
	dataDir string
	public  string
	ledger  string
	metrics string
}

func newTestEnv(t *testing.T, format string) *testEnv {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	for _, key := range []string{
		config.EnvToken, config.EnvUserID, config.EnvBaseURL, config.EnvDataDir, config.EnvPublicDir,
		config.EnvRanges, config.EnvTimeout, config.EnvPacing, config.EnvLedger, config.EnvMetrics,
		config.EnvLogLevel, config.EnvLogFormat, config.EnvS3Bucket, config.EnvS3Region, config.EnvS3Endpoint,
		config.EnvS3Prefix, config.EnvS3AccessKey, config.EnvS3SecretKey, config.EnvS3UseSSL,
	} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	env := &testEnv{
		api:     testutil.NewStatsAPI(t),
		root:    &RootOptions{Format: format, EnvFile: filepath.Join(dir, "absent.env"), ConfigPath: ""},
		dataDir: filepath.Join(dir, "data", "music"),
		public:  filepath.Join(dir, "portfolio", "public", "data", "music"),
		ledger:  filepath.Join(dir, "state", "runs.db"),
		metrics: filepath.Join(dir, "metrics", "musicsnap.prom"),
	}
	t.Setenv(config.EnvBaseURL, env.api.URL())
	t.Setenv(config.EnvDataDir, env.dataDir)
	t.Setenv(config.EnvPublicDir, env.public)
	t.Setenv(config.EnvPacing, "0s")
	t.Setenv(config.EnvTimeout, "5s")
	return env
}

// run executes cmd with args and returns stdout and stderr.
func run(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func seedFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func ensureParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
