package sandbox

import "context"

// Provider provisions sandboxes. Implementations exist for a remote
// sandbox API (remote.go) and local Docker containers (docker.go).
type Provider interface {
	// Create provisions a sandbox that stays alive for at most
	// timeoutSeconds. The returned handle is exclusively owned by the
	// caller.
	Create(ctx context.Context, timeoutSeconds int) (Handle, error)
}

// Handle is one live sandbox: a code-run capability plus a file-transfer
// capability over its filesystem.
type Handle interface {
	RunCode(ctx context.Context, code string) (*Execution, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	ListFiles(ctx context.Context, dir string) ([]FileInfo, error)
	// IsRunning reports whether the sandbox is still alive. A probe
	// failure reads as not running.
	IsRunning(ctx context.Context) bool
	Kill(ctx context.Context) error
}

// FileInfo describes one remote file.
type FileInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Execution is the raw outcome of one code run, before normalization.
type Execution struct {
	Error   *ExecutionError `json:"error,omitempty"`
	Stdout  []string        `json:"stdout,omitempty"`
	Stderr  []string        `json:"stderr,omitempty"`
	Results []Result        `json:"-"`
}

// ExecutionError is the fault reported by the code under execution.
// A fault is an expected outcome, carried as data rather than as a Go
// error.
type ExecutionError struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Traceback string `json:"traceback"`
}

// Format tags one rich representation of a result value.
type Format string

const (
	FormatText       Format = "text"
	FormatHTML       Format = "html"
	FormatMarkdown   Format = "markdown"
	FormatPNG        Format = "png"
	FormatJPEG       Format = "jpeg"
	FormatSVG        Format = "svg"
	FormatPDF        Format = "pdf"
	FormatLaTeX      Format = "latex"
	FormatJSON       Format = "json"
	FormatJavascript Format = "javascript"
)

// FormatPriority is the fixed probe order for representations within
// one result value.
var FormatPriority = []Format{
	FormatText,
	FormatHTML,
	FormatMarkdown,
	FormatPNG,
	FormatJPEG,
	FormatSVG,
	FormatPDF,
	FormatLaTeX,
	FormatJSON,
	FormatJavascript,
}

// IsBinaryMedia reports whether a format's payload is binary media
// (base64 image/document data) rather than text.
func IsBinaryMedia(f Format) bool {
	switch f {
	case FormatPNG, FormatJPEG, FormatSVG, FormatPDF:
		return true
	}
	return false
}

// Result is one result object of an execution, exposing zero or more
// representations. Representation never fails: a format the value does
// not carry simply reports ok=false.
type Result interface {
	Representation(f Format) (payload string, ok bool)
}

// ResultData is a Result backed by a plain format→payload map. The
// remote provider decodes the sandbox API's result objects into it.
type ResultData map[Format]string

func (r ResultData) Representation(f Format) (string, bool) {
	payload, ok := r[f]
	if !ok || payload == "" {
		return "", false
	}
	return payload, true
}
