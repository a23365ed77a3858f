package e2e_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE2E_ObjectRoundTrip(t *testing.T) {
	cli := newCLI(t, JournalConfig{Type: "none"})
	uri := "file://" + filepath.Join(t.TempDir(), "repo-test-abc")

	cli.ok("mb", uri)

	res := cli.run(`{"id":"e1"}`, "put", uri, "metadata/experiments/e1.json")
	require.Equal(t, 0, res.ExitCode, res.Stderr)

	src := filepath.Join(t.TempDir(), "e2.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"id":"e2"}`), 0o600))
	cli.ok("put", uri, "metadata/experiments/e2.json", src)

	assert.Equal(t, "true\n", cli.ok("exists", uri, "metadata/experiments/e1.json"))
	assert.Equal(t, "false\n", cli.ok("exists", uri, "metadata/experiments/e3.json"))
	assert.Equal(t, `{"id":"e1"}`, cli.ok("get", uri, "metadata/experiments/e1.json"))

	dst := filepath.Join(t.TempDir(), "out.json")
	cli.ok("get", uri, "metadata/experiments/e2.json", "-o", dst)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"e2"}`, string(data))

	var listed struct {
		Keys []string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal([]byte(cli.ok("ls", uri, "--json")), &listed))
	assert.ElementsMatch(t, []string{"metadata/experiments/e1.json", "metadata/experiments/e2.json"}, listed.Keys)

	cli.ok("rm", uri, "--yes")
	require.NoError(t, json.Unmarshal([]byte(cli.ok("ls", uri, "--json")), &listed))
	assert.Empty(t, listed.Keys)

	cli.ok("rb", uri)
	assert.Equal(t, "false\n", cli.ok("exists", uri, "metadata/experiments/e1.json"))
}

func TestE2E_ExistsJSON(t *testing.T) {
	cli := newCLI(t, JournalConfig{Type: "none"})
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte("{}"), 0o600))

	var out struct {
		Exists bool `json:"exists"`
	}
	require.NoError(t, json.Unmarshal([]byte(cli.ok("exists", "file://"+dir, "index.json", "--json")), &out))
	assert.True(t, out.Exists)
}

func TestE2E_Errors(t *testing.T) {
	cli := newCLI(t, JournalConfig{Type: "none"})

	t.Run("unknown scheme", func(t *testing.T) {
		res := cli.run("", "exists", "ftp://host/repo", "a.json")
		assert.Equal(t, 1, res.ExitCode)
		assert.Contains(t, res.Stderr, "unknown")
	})

	t.Run("malformed uri", func(t *testing.T) {
		res := cli.run("", "ls", "not-a-uri")
		assert.Equal(t, 1, res.ExitCode)
		assert.Contains(t, res.Stderr, "malformed")
	})

	t.Run("azure without account url", func(t *testing.T) {
		res := cli.run("", "exists", "abs://container/repo", "a.json")
		assert.Equal(t, 1, res.ExitCode)
		assert.Contains(t, res.Stderr, "STORAGE_BLOB_URL")
	})

	t.Run("missing object", func(t *testing.T) {
		res := cli.run("", "get", "file://"+t.TempDir(), "missing.json")
		assert.Equal(t, 1, res.ExitCode)
		assert.Contains(t, res.Stderr, "not found")
	})

	t.Run("teardown without journal", func(t *testing.T) {
		res := cli.run("", "teardown", "--yes")
		assert.Equal(t, 1, res.ExitCode)
		assert.Contains(t, res.Stderr, "journal")
	})
}

func TestE2E_RemoveBucketForce(t *testing.T) {
	cli := newCLI(t, JournalConfig{Type: "none"})
	dir := filepath.Join(t.TempDir(), "repo-test-force")
	uri := "file://" + dir

	cli.ok("mb", uri)
	res := cli.run("x", "put", uri, "a/b.json")
	require.Equal(t, 0, res.ExitCode, res.Stderr)

	res = cli.run("", "rb", uri)
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Stderr, "not empty")
	assert.DirExists(t, dir)

	cli.ok("rb", uri, "--force")
	assert.NoDirExists(t, dir)
}

func TestE2E_ProvisionTeardown_SQLite(t *testing.T) {
	runProvisionTeardown(t, JournalConfig{
		Type: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "journal.db"),
	})
}

func TestE2E_ProvisionTeardown_Postgres(t *testing.T) {
	runProvisionTeardown(t, JournalConfig{
		Type: "postgres",
		DSN:  getSharedPostgresDatabase(t),
	})
}

type handleList map[string][]struct {
	Scheme string `json:"scheme"`
	Name   string `json:"name"`
}

// runProvisionTeardown provisions containers in one process and tears them
// down from another through the shared journal.
func runProvisionTeardown(t *testing.T, j JournalConfig) {
	t.Helper()
	cli := newCLI(t, j)

	var names []string
	for range 3 {
		var out handleList
		require.NoError(t, json.Unmarshal([]byte(cli.ok("provision", "file", "--create", "--json")), &out))
		require.Len(t, out["provisioned"], 1)

		h := out["provisioned"][0]
		assert.Equal(t, "file", h.Scheme)
		assert.True(t, strings.HasPrefix(h.Name, "repo-test-"), h.Name)
		assert.Len(t, h.Name, len("repo-test-")+12)
		assert.DirExists(t, filepath.Join(cli.dir, h.Name))

		res := cli.run(`{"id":"e1"}`, "put", "file://"+h.Name, "metadata/experiments/e1.json")
		require.Equal(t, 0, res.ExitCode, res.Stderr)
		names = append(names, h.Name)
	}

	tracked := filepath.Join(cli.dir, "repo-test-tracked")
	cli.ok("mb", "file://"+tracked, "--track")
	names = append(names, tracked)

	var pending handleList
	require.NoError(t, json.Unmarshal([]byte(cli.ok("pending", "--json")), &pending))
	require.Len(t, pending["pending"], 4)
	for i, h := range pending["pending"] {
		assert.Equal(t, names[i], h.Name, "pending keeps creation order")
	}

	out := cli.ok("teardown", "--yes")
	assert.Contains(t, out, "4 released, 0 failed")

	for _, name := range names {
		if !filepath.IsAbs(name) {
			name = filepath.Join(cli.dir, name)
		}
		assert.NoDirExists(t, name)
	}

	require.NoError(t, json.Unmarshal([]byte(cli.ok("pending", "--json")), &pending))
	assert.Empty(t, pending["pending"])

	out = cli.ok("teardown", "--yes")
	assert.Contains(t, out, "0 released, 0 failed")
}
