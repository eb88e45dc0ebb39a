package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// captureRequest mirrors the portalshot API request model.
type captureRequest struct {
	ID            string `json:"id,omitempty"`
	URL           string `json:"url,omitempty"`
	Markdown      *bool  `json:"markdown,omitempty"`
	IncludeMarkup bool   `json:"include_markup,omitempty"`
}

// captureResponse mirrors the portalshot API response model.
type captureResponse struct {
	Success       bool     `json:"success"`
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Slug          string   `json:"slug"`
	Authenticated bool     `json:"authenticated"`
	Files         []string `json:"files"`
	Markup        string   `json:"markup"`
	Timing        struct {
		TotalMs int64 `json:"total_ms"`
	} `json:"timing"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Stage   string `json:"stage"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("PORTALSHOT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PORTALSHOT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "PORTALSHOT_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"portalshot",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	s.AddTool(capturePageTool(), handleCapturePage(apiURL, apiKey, &http.Client{Timeout: 120 * time.Second}))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func capturePageTool() mcp.Tool {
	return mcp.NewTool("capture_page",
		mcp.WithDescription("Capture a district portal page through a logged-in browser session. Writes a screenshot, a JSON record and the HTML source on the server and returns their paths."),
		mcp.WithString("id",
			mcp.Description("Page identifier appended to the configured portal base URL"),
		),
		mcp.WithString("url",
			mcp.Description("Full URL to capture instead of an id"),
		),
		mcp.WithBoolean("markdown",
			mcp.Description("Also write a readable Markdown rendition"),
		),
		mcp.WithBoolean("include_markup",
			mcp.Description("Return the captured HTML source in the result"),
		),
	)
}

func handleCapturePage(apiURL, apiKey string, client *http.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := captureRequest{
			ID:            request.GetString("id", ""),
			URL:           request.GetString("url", ""),
			IncludeMarkup: request.GetBool("include_markup", false),
		}
		if (req.ID == "") == (req.URL == "") {
			return mcp.NewToolResultError("exactly one of id or url is required"), nil
		}
		if args := request.GetArguments(); args != nil {
			if _, ok := args["markdown"]; ok {
				md := request.GetBool("markdown", false)
				req.Markdown = &md
			}
		}

		body, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/capture", req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp captureResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success {
			msg := "capture failed"
			if e := resp.Error; e != nil {
				msg = fmt.Sprintf("[%s] %s", e.Code, e.Message)
				if e.Stage != "" {
					msg += " (stage " + e.Stage + ")"
				}
			}
			return mcp.NewToolResultError(msg), nil
		}
		return mcp.NewToolResultText(formatCapture(&resp)), nil
	}
}

func formatCapture(resp *captureResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nSource: %s\nSlug: %s\n", resp.Title, resp.URL, resp.Slug)
	if resp.Authenticated {
		b.WriteString("Logged in: yes\n")
	}
	b.WriteString("Files:\n")
	for _, f := range resp.Files {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	fmt.Fprintf(&b, "Took %dms\n", resp.Timing.TotalMs)
	if resp.Markup != "" {
		b.WriteString("\n---\n")
		b.WriteString(resp.Markup)
	}
	return b.String()
}

// apiPost sends a POST request to the portalshot API and returns the body.
// Error statuses still carry a JSON body, so they are not errors here.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
