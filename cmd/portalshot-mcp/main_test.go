package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callTool(t *testing.T, srv *httptest.Server, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	h := handleCapturePage(srv.URL, "k1", srv.Client())
	req := mcp.CallToolRequest{}
	req.Params.Name = "capture_page"
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestCapturePageForwardsRequest(t *testing.T) {
	var got captureRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/capture", r.URL.Path)
		assert.Equal(t, "k1", r.Header.Get("X-API-Key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, `{"success":true,"url":"https://p.test/42","title":"Student Home","slug":"student _home","authenticated":true,"files":["out/student _home.png"],"timing":{"total_ms":12}}`)
	}))
	defer srv.Close()

	res := callTool(t, srv, map[string]any{"id": "42", "markdown": false})
	assert.False(t, res.IsError)
	out := text(t, res)
	assert.Contains(t, out, "Slug: student _home")
	assert.Contains(t, out, "Logged in: yes")
	assert.Contains(t, out, "- out/student _home.png")

	assert.Equal(t, "42", got.ID)
	require.NotNil(t, got.Markdown)
	assert.False(t, *got.Markdown)
}

func TestCapturePageErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
		_, _ = io.WriteString(w, `{"success":false,"error":{"code":"READINESS_TIMEOUT","message":"page did not become ready","stage":"AwaitingInitialReady"}}`)
	}))
	defer srv.Close()

	res := callTool(t, srv, map[string]any{"url": "https://p.test/1"})
	assert.True(t, res.IsError)
	assert.Equal(t, "[READINESS_TIMEOUT] page did not become ready (stage AwaitingInitialReady)", text(t, res))

	res = callTool(t, srv, map[string]any{})
	assert.True(t, res.IsError)

	res = callTool(t, srv, map[string]any{"id": "1", "url": "https://p.test/1"})
	assert.True(t, res.IsError)
}
