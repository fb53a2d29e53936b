package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// RemoteProvider talks to a hosted sandbox service over its REST API.
type RemoteProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRemoteProvider creates a client for the sandbox API at baseURL.
// Calls carry the API key as a bearer token. No overall HTTP timeout is
// set: executions can legitimately run for minutes, so deadlines come
// from the caller's context.
func NewRemoteProvider(baseURL, apiKey string) *RemoteProvider {
	return &RemoteProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type createSandboxRequest struct {
	TimeoutSeconds int `json:"timeout"`
}

type createSandboxResponse struct {
	SandboxID string `json:"sandbox_id"`
}

func (p *RemoteProvider) Create(ctx context.Context, timeoutSeconds int) (Handle, error) {
	var resp createSandboxResponse
	err := p.doJSON(ctx, http.MethodPost, p.baseURL+"/sandboxes",
		createSandboxRequest{TimeoutSeconds: timeoutSeconds}, &resp)
	if err != nil {
		return nil, fmt.Errorf("sandbox create failed: %w", err)
	}
	if resp.SandboxID == "" {
		return nil, fmt.Errorf("sandbox create returned no sandbox id")
	}
	return &remoteHandle{provider: p, sandboxID: resp.SandboxID}, nil
}

type remoteHandle struct {
	provider  *RemoteProvider
	sandboxID string
}

// remoteExecution is the wire shape of one execution outcome. Result
// objects arrive as format→payload maps.
type remoteExecution struct {
	Error   *ExecutionError     `json:"error,omitempty"`
	Stdout  []string            `json:"stdout,omitempty"`
	Stderr  []string            `json:"stderr,omitempty"`
	Results []map[string]string `json:"results,omitempty"`
}

func (h *remoteHandle) RunCode(ctx context.Context, code string) (*Execution, error) {
	var wire remoteExecution
	err := h.provider.doJSON(ctx, http.MethodPost, h.url("/code"),
		map[string]string{"code": code}, &wire)
	if err != nil {
		return nil, fmt.Errorf("run code failed: %w", err)
	}

	execution := &Execution{
		Error:  wire.Error,
		Stdout: wire.Stdout,
		Stderr: wire.Stderr,
	}
	for _, raw := range wire.Results {
		data := make(ResultData, len(raw))
		for format, payload := range raw {
			data[Format(format)] = payload
		}
		execution.Results = append(execution.Results, data)
	}
	return execution, nil
}

func (h *remoteHandle) WriteFile(ctx context.Context, path string, data []byte) error {
	_, err := h.provider.do(ctx, http.MethodPut,
		h.url("/files")+"?path="+url.QueryEscape(path), bytes.NewReader(data), "application/octet-stream")
	if err != nil {
		return fmt.Errorf("write %s failed: %w", path, err)
	}
	return nil
}

func (h *remoteHandle) ReadFile(ctx context.Context, path string) ([]byte, error) {
	body, err := h.provider.do(ctx, http.MethodGet,
		h.url("/files")+"?path="+url.QueryEscape(path), nil, "")
	if err != nil {
		return nil, fmt.Errorf("read %s failed: %w", path, err)
	}
	return body, nil
}

func (h *remoteHandle) ListFiles(ctx context.Context, dir string) ([]FileInfo, error) {
	var files []FileInfo
	err := h.provider.doJSONGet(ctx, h.url("/files/list")+"?dir="+url.QueryEscape(dir), &files)
	if err != nil {
		return nil, fmt.Errorf("list %s failed: %w", dir, err)
	}
	return files, nil
}

func (h *remoteHandle) IsRunning(ctx context.Context) bool {
	var status struct {
		Running bool `json:"running"`
	}
	if err := h.provider.doJSONGet(ctx, h.url(""), &status); err != nil {
		return false
	}
	return status.Running
}

func (h *remoteHandle) Kill(ctx context.Context) error {
	if _, err := h.provider.do(ctx, http.MethodDelete, h.url(""), nil, ""); err != nil {
		return fmt.Errorf("kill failed: %w", err)
	}
	return nil
}

func (h *remoteHandle) url(suffix string) string {
	return h.provider.baseURL + "/sandboxes/" + h.sandboxID + suffix
}

// do sends one request and returns the response body, mapping non-2xx
// statuses to errors.
func (p *RemoteProvider) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sandbox request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("sandbox at capacity (HTTP 429)")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("sandbox returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (p *RemoteProvider) doJSON(ctx context.Context, method, rawURL string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	respBody, err := p.do(ctx, method, rawURL, bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (p *RemoteProvider) doJSONGet(ctx context.Context, rawURL string, out any) error {
	respBody, err := p.do(ctx, http.MethodGet, rawURL, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
