package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sagarc03/repostore/backend"
	repohttp "github.com/sagarc03/repostore/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacadeStorage_FileRepository(t *testing.T) {
	f, err := backend.NewFacade(backend.Config{}, nil)
	require.NoError(t, err)

	base := t.TempDir()
	config := &repohttp.HandlerConfig{FileRoots: []string{base}}
	server := httptest.NewServer(repohttp.NewHandler(config, repohttp.NewFacadeStorage(f)).Router())
	t.Cleanup(server.Close)

	uri := "file://" + base + "/repo-test-abc"
	ctx := context.Background()

	do := func(method, route string, body string, params ...string) *http.Response {
		t.Helper()
		req, err := http.NewRequestWithContext(ctx, method, server.URL+target(route, append([]string{"uri", uri}, params...)...), strings.NewReader(body))
		require.NoError(t, err)
		resp, err := server.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusOK, do("PUT", "/v1/containers", "").StatusCode)
	assert.Equal(t, http.StatusOK, do("PUT", "/v1/objects", `{"id":"e1"}`, "path", "metadata/experiments/e1.json").StatusCode)
	assert.Equal(t, http.StatusOK, do("HEAD", "/v1/objects", "", "path", "metadata/experiments/e1.json").StatusCode)
	assert.Equal(t, http.StatusNotFound, do("HEAD", "/v1/objects", "", "path", "metadata/experiments/e2.json").StatusCode)

	resp := do("DELETE", "/v1/containers", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	assert.Equal(t, http.StatusNoContent, do("DELETE", "/v1/containers", "", "force", "true").StatusCode)
	assert.Equal(t, http.StatusNotFound, do("HEAD", "/v1/objects", "", "path", "metadata/experiments/e1.json").StatusCode)
}
