package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"codesession/model"
	"codesession/sandbox"
)

// DefaultSessionTimeout is the sandbox lifetime used when the caller
// does not supply one: effectively "very long" (10 hours).
const DefaultSessionTimeout = 36000

// preExecuteScript prepares the plotting environment so later code can
// render figures headlessly.
const preExecuteScript = `import matplotlib as mpl
mpl.use('Agg')
import matplotlib.pyplot as plt
try:
    import seaborn as sns
    sns.set_style('whitegrid')
    sns.set_context('paper', font_scale=1.2)
except Exception as e:
    print('seaborn unavailable, skipping style setup:', e)
plt.rcParams['font.sans-serif'] = ['SimHei', 'Arial Unicode MS', 'DejaVu Sans']
plt.rcParams['axes.unicode_minus'] = False
plt.rcParams['font.family'] = 'sans-serif'
mpl.rcParams['font.size'] = 12
`

// Recorder appends to a persisted transcript of executed cells. It is
// write-only from the session's point of view; every method is called
// best-effort.
type Recorder interface {
	AddCodeCell(code string) error
	AddCodeCellOutput(text string) error
	AddCodeCellError(text string) error
	AddImage(base64Data, mimeType string) error
}

// ProgressPublisher notifies the UI channel around each execution.
type ProgressPublisher interface {
	Publish(taskID string, msg model.ProgressMessage) error
}

// SessionConfig carries everything a Session needs at construction.
// Provider, TaskID and WorkDir are required; the rest defaults.
type SessionConfig struct {
	TaskID   string
	WorkDir  string
	Provider sandbox.Provider

	Recorder  Recorder
	Publisher ProgressPublisher
	Logger    *zap.Logger

	// TruncateLimit caps text fragments destined for the machine
	// summary. Defaults to 1000.
	TruncateLimit int

	// OnSuppressed observes best-effort failures that were logged and
	// swallowed. Nil is fine.
	OnSuppressed func(op string, err error)
}

// Session owns one sandbox for the lifetime of one task: it provisions
// it, seeds input files, runs code, syncs outputs back, and tears the
// sandbox down. Operations on one Session must be serialized by the
// caller.
type Session struct {
	taskID        string
	workDir       string
	provider      sandbox.Provider
	recorder      Recorder
	publisher     ProgressPublisher
	logger        *zap.Logger
	truncateLimit int
	onSuppressed  func(op string, err error)

	handle         sandbox.Handle
	sectionOutputs map[string]*sectionOutput
	seenImages     map[string]struct{}
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.TruncateLimit <= 0 {
		cfg.TruncateLimit = defaultTruncateLimit
	}
	return &Session{
		taskID:         cfg.TaskID,
		workDir:        cfg.WorkDir,
		provider:       cfg.Provider,
		recorder:       cfg.Recorder,
		publisher:      cfg.Publisher,
		logger:         cfg.Logger.With(zap.String("task_id", cfg.TaskID)),
		truncateLimit:  cfg.TruncateLimit,
		onSuppressed:   cfg.OnSuppressed,
		sectionOutputs: make(map[string]*sectionOutput),
		seenImages:     make(map[string]struct{}),
	}
}

// Initialize provisions the sandbox with the given lifetime in seconds,
// runs the plotting setup script, then uploads the workspace's input
// files. Any failure aborts initialization and propagates; a partially
// initialized session is not usable.
func (s *Session) Initialize(ctx context.Context, timeoutSeconds int) error {
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultSessionTimeout
	}

	handle, err := s.provider.Create(ctx, timeoutSeconds)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSandboxProvision, err)
	}
	s.handle = handle
	s.logger.Info("sandbox created", zap.Int("timeout_seconds", timeoutSeconds))

	execution, err := handle.RunCode(ctx, preExecuteScript)
	if err != nil {
		return fmt.Errorf("%w: pre-execute script: %v", ErrSandboxProvision, err)
	}
	if execution.Error != nil {
		return fmt.Errorf("%w: pre-execute script: %s: %s",
			ErrSandboxProvision, execution.Error.Name, execution.Error.Value)
	}

	if err := s.uploadAllFiles(ctx); err != nil {
		return err
	}

	s.logger.Info("session initialized", zap.String("work_dir", s.workDir))
	return nil
}

// ExecuteCode runs one code string in the sandbox and returns the
// normalized result. A faulting program is an expected outcome and is
// reported inside the result, never as a Go error; the only error here
// is calling before Initialize.
func (s *Session) ExecuteCode(ctx context.Context, code string) (*model.ExecutionResult, error) {
	if s.handle == nil {
		return nil, ErrNotInitialized
	}

	s.record("record code cell", func(r Recorder) error { return r.AddCodeCell(code) })
	s.publish(model.ProgressInfo, "code execution started")
	s.logger.Info("executing code", zap.Int("code_len", len(code)))

	execution, err := s.handle.RunCode(ctx, code)
	if err != nil {
		// Transport-level failures (including sandbox timeouts) surface
		// through the normal error path of the result.
		msg := s.truncate("sandbox execution failed: " + err.Error())
		s.logger.Error("sandbox execution failed", zap.Error(err))
		s.publish(model.ProgressError, msg)
		return &model.ExecutionResult{
			CombinedText:  msg,
			ErrorOccurred: true,
			ErrorMessage:  msg,
			Display:       []model.DisplayItem{{Kind: model.KindError, Msg: msg}},
		}, nil
	}

	s.publish(model.ProgressInfo, "code execution completed")
	result := s.normalizeExecution(execution)
	if result.ErrorOccurred {
		s.publish(model.ProgressError, result.ErrorMessage)
	}

	// Post-execution sync is advisory: the result is reported even if
	// artifact persistence partially fails.
	s.DownloadAllFiles(ctx)

	return result, nil
}

// Cleanup downloads remaining files best-effort and kills the sandbox.
// It never returns an error and never panics: it runs in finally-style
// paths and must not mask the task's actual outcome. Calling it with no
// live sandbox is a recorded no-op.
func (s *Session) Cleanup(ctx context.Context) {
	if s.handle == nil {
		s.logger.Info("cleanup skipped: sandbox never initialized")
		return
	}
	if !s.handle.IsRunning(ctx) {
		s.logger.Info("cleanup skipped: sandbox already stopped")
		s.handle = nil
		return
	}

	s.DownloadAllFiles(ctx)

	handle := s.handle
	s.advisory("kill sandbox", func() error { return handle.Kill(ctx) })
	s.handle = nil
	s.logger.Info("session cleaned up")
}

// advisory runs a best-effort operation: a failure is logged, reported
// to the suppressed-failure hook, and never propagated.
func (s *Session) advisory(op string, fn func() error) {
	if err := fn(); err != nil {
		s.suppress(op, err)
	}
}

func (s *Session) suppress(op string, err error) {
	s.logger.Warn("suppressed failure", zap.String("op", op), zap.Error(err))
	if s.onSuppressed != nil {
		s.onSuppressed(op, err)
	}
}

func (s *Session) record(op string, fn func(Recorder) error) {
	if s.recorder == nil {
		return
	}
	s.advisory(op, func() error { return fn(s.recorder) })
}

func (s *Session) publish(level model.ProgressLevel, content string) {
	if s.publisher == nil {
		return
	}
	s.advisory("publish progress", func() error {
		return s.publisher.Publish(s.taskID, model.ProgressMessage{Level: level, Content: content})
	})
}
