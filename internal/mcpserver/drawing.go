package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/atlas/internal/chartservice"
)

const maxDrawingSize = 10 << 20 // 10 MB

var safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

type drawingResult struct {
	SavedPath     string `json:"savedPath"`
	MarkdownImage string `json:"markdownImage"`
	EditorLink    string `json:"editorLink"`
}

func (s *Server) saveDrawing(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chart, err := req.RequireString("chart")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	slug, err := chartservice.NormalizeSlug(chart)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var data []byte
	switch {
	case strings.HasPrefix(source, "data:"):
		data, err = decodeDataURI(source)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		data, err = fetchHTTP(ctx, source)
	default:
		data = []byte(source)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxDrawingSize {
		return mcp.NewToolResultError(fmt.Sprintf("drawing too large: %d bytes (max %d)", len(data), maxDrawingSize)), nil
	}

	filename := sanitizeFilename(req.GetString("filename", ""))
	if !strings.EqualFold(path.Ext(filename), ".svg") {
		return mcp.NewToolResultError(fmt.Sprintf("drawing name must end in .svg: %s", filename)), nil
	}

	p := slug + filename
	if err := s.svc.SaveSVG(ctx, p, data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save drawing: %v", err)), nil
	}

	out, _ := json.Marshal(drawingResult{
		SavedPath:     "/" + p,
		MarkdownImage: fmt.Sprintf("![%s](./%s)", strings.TrimSuffix(filename, path.Ext(filename)), filename),
		EditorLink:    "/" + p + "/editor",
	})
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI parses a data:image/svg+xml;base64,<data> URI.
func decodeDataURI(uri string) ([]byte, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.Contains(meta, ";base64") {
		return nil, fmt.Errorf("only base64 data URIs are supported")
	}
	if mime := strings.Split(meta, ";")[0]; mime != "image/svg+xml" {
		return nil, fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, nil
}

// fetchHTTP downloads a drawing from an HTTP/HTTPS URL with security checks.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDrawingSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	return data, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// sanitizeFilename strips path separators and unsafe characters. An empty
// name becomes a fresh "drawing-<uuid>.svg".
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return "drawing-" + uuid.New().String() + ".svg"
	}
	return safeFilenameRe.ReplaceAllString(name, "_")
}
