package model

// DisplayItemKind tags one renderable unit of execution output.
type DisplayItemKind string

const (
	KindStdout DisplayItemKind = "stdout"
	KindStderr DisplayItemKind = "stderr"
	KindError  DisplayItemKind = "error"
	KindResult DisplayItemKind = "result"
)

// DisplayItem is a single renderable unit of an execution's output.
// Format is set only for KindResult items.
type DisplayItem struct {
	Kind   DisplayItemKind `json:"kind"`
	Format string          `json:"format,omitempty"`
	Msg    string          `json:"msg"`
}

// ExecutionResult is the normalized outcome of one code execution.
// ErrorMessage is non-empty exactly when ErrorOccurred is true.
type ExecutionResult struct {
	CombinedText  string        `json:"combined_text"`
	ErrorOccurred bool          `json:"error_occurred"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	Display       []DisplayItem `json:"display,omitempty"`
}

// ExecuteRequest is the NATS request to run code in a task's session.
type ExecuteRequest struct {
	TaskID  string `json:"task_id"`
	Code    string `json:"code"`
	Section string `json:"section,omitempty"`
}

// ExecuteResponse wraps the normalized result for the reply subject.
type ExecuteResponse struct {
	Success       bool             `json:"success"`
	StatusMessage string           `json:"status_message"`
	Result        *ExecutionResult `json:"result,omitempty"`
}

// SessionRequest addresses one task's session (init, cleanup, images).
type SessionRequest struct {
	TaskID  string `json:"task_id"`
	Section string `json:"section,omitempty"`
	Timeout int    `json:"timeout,omitempty"` // seconds, init only
}

// SessionResponse acknowledges a session operation.
type SessionResponse struct {
	Success       bool     `json:"success"`
	StatusMessage string   `json:"status_message"`
	Images        []string `json:"images,omitempty"`
}

// ProgressLevel classifies a progress message for the UI.
type ProgressLevel string

const (
	ProgressInfo  ProgressLevel = "info"
	ProgressError ProgressLevel = "error"
)

// ProgressMessage is the fire-and-forget notification published around
// each execution.
type ProgressMessage struct {
	Level   ProgressLevel `json:"level"`
	Content string        `json:"content"`
}
