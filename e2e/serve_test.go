package e2e_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeAddr returns a loopback address with a port that was free a moment ago.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// startServer runs "repostore serve" until the test ends and waits for
// /healthz to answer.
func (c *CLI) startServer(addr, fileRoot string) string {
	c.t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, c.binary, "--config", c.config, "serve", "--addr", addr)
	cmd.Dir = c.dir
	cmd.Env = append(cliEnv(), "REPOSTORE_SERVER_TOKEN=e2e-token", "REPOSTORE_SERVER_FILE_ROOTS="+fileRoot)
	require.NoError(c.t, cmd.Start())

	c.t.Cleanup(func() {
		cancel()
		_ = cmd.Wait()
	})

	base := "http://" + addr
	require.Eventually(c.t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 20*time.Second, 100*time.Millisecond, "server did not become healthy")

	return base
}

func TestServe_FileRootsRequireToken(t *testing.T) {
	cli := newCLI(t, JournalConfig{Type: "none"})

	cmd := exec.Command(cli.binary, "--config", cli.config, "serve", "--addr", freeAddr(t))
	cmd.Dir = cli.dir
	cmd.Env = append(cliEnv(), "REPOSTORE_SERVER_FILE_ROOTS="+t.TempDir())
	out, err := cmd.CombinedOutput()

	require.Error(t, err)
	assert.Contains(t, string(out), "server.file_roots requires server.token")
}

func TestServe_Gateway(t *testing.T) {
	cli := newCLI(t, JournalConfig{Type: "none"})
	root := t.TempDir()
	base := cli.startServer(freeAddr(t), root)

	repo := "file://" + root + "/repo-test-serve"
	cli.ok("mb", repo)
	res := cli.run(`{"id":"e1"}`, "put", repo, "metadata/experiments/e1.json")
	require.Equal(t, 0, res.ExitCode, res.Stderr)

	call := func(method, route string, token string, body string, params ...string) *http.Response {
		t.Helper()
		q := url.Values{"uri": {repo}}
		for i := 0; i+1 < len(params); i += 2 {
			q.Set(params[i], params[i+1])
		}
		req, err := http.NewRequest(method, base+route+"?"+q.Encode(), strings.NewReader(body))
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	t.Run("token required", func(t *testing.T) {
		resp := call("GET", "/v1/exists", "", "", "path", "metadata/experiments/e1.json")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("exists", func(t *testing.T) {
		resp := call("GET", "/v1/exists", "e2e-token", "", "path", "metadata/experiments/e1.json")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got struct {
			Exists bool `json:"exists"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.True(t, got.Exists)

		resp = call("HEAD", "/v1/objects", "e2e-token", "", "path", "metadata/experiments/e2.json")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("put and get", func(t *testing.T) {
		resp := call("PUT", "/v1/objects", "e2e-token", `{"id":"c1"}`, "path", "metadata/commits/c1.json")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = call("GET", "/v1/objects", "e2e-token", "", "path", "metadata/commits/c1.json")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"id":"c1"}`, string(data))

		assert.Contains(t, cli.ok("ls", repo), "metadata/commits/c1.json")
	})

	t.Run("unknown scheme", func(t *testing.T) {
		req, err := http.NewRequest("GET", base+"/v1/exists?uri=ftp%3A%2F%2Fhost%2Fpath&path=a", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer e2e-token")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("file root outside allowlist", func(t *testing.T) {
		req, err := http.NewRequest("GET", base+"/v1/exists?uri="+url.QueryEscape("file://"+t.TempDir())+"&path=a", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer e2e-token")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("remove container", func(t *testing.T) {
		resp := call("DELETE", "/v1/containers", "e2e-token", "", "force", "true")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "false\n", cli.ok("exists", repo, "metadata/experiments/e1.json"))
	})
}
