package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"codesession/config"
	"codesession/executor"
	"codesession/internal"
	"codesession/model"
	"codesession/notebook"
	"codesession/sandbox"
)

var (
	ErrSessionExists   = errors.New("session already active for task")
	ErrSessionNotFound = errors.New("no active session for task")
)

// SessionService keeps one live Session per task and serializes the
// operations on each of them. Sessions of different tasks are
// independent and run concurrently.
type SessionService struct {
	cfg       config.Config
	provider  sandbox.Provider
	publisher executor.ProgressPublisher
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*executor.Session
	locks    map[string]*sync.Mutex
}

func NewSessionService(cfg config.Config, provider sandbox.Provider, publisher executor.ProgressPublisher, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		cfg:       cfg,
		provider:  provider,
		publisher: publisher,
		logger:    logger,
		sessions:  make(map[string]*executor.Session),
		locks:     make(map[string]*sync.Mutex),
	}
}

// taskLock returns the per-task mutex, creating it on first use. One
// session's operations must never interleave.
func (s *SessionService) taskLock(taskID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[taskID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[taskID] = lock
	}
	return lock
}

func (s *SessionService) session(taskID string) *executor.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[taskID]
}

// InitSession provisions a sandbox session for the task. The task's
// workspace lives under the configured work-dir root.
func (s *SessionService) InitSession(ctx context.Context, taskID string, timeoutSeconds int) error {
	lock := s.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	if s.session(taskID) != nil {
		return fmt.Errorf("%w: %s", ErrSessionExists, taskID)
	}

	workDir := filepath.Join(s.cfg.WorkDirRoot, taskID)

	// The transcript is a side-record; a session without one still works.
	var recorder executor.Recorder
	if nb, err := notebook.NewSerializer(workDir, "notebook.ipynb"); err != nil {
		s.logger.Warn("notebook unavailable, continuing without transcript",
			zap.String("task_id", taskID), zap.Error(err))
	} else {
		recorder = nb
	}

	sess := executor.NewSession(executor.SessionConfig{
		TaskID:        taskID,
		WorkDir:       workDir,
		Provider:      s.provider,
		Recorder:      recorder,
		Publisher:     s.publisher,
		Logger:        s.logger,
		TruncateLimit: s.cfg.TruncateLimit,
	})

	if timeoutSeconds <= 0 {
		timeoutSeconds = s.cfg.SessionTimeout
	}
	if err := sess.Initialize(ctx, timeoutSeconds); err != nil {
		// Leave no half-usable state behind; the failed sandbox, if
		// any, is torn down best-effort.
		sess.Cleanup(ctx)
		return err
	}

	s.mu.Lock()
	s.sessions[taskID] = sess
	s.mu.Unlock()
	s.logger.Info("session initialized", zap.String("task_id", taskID))
	return nil
}

// Execute validates and runs one code submission in the task's session.
func (s *SessionService) Execute(ctx context.Context, taskID, code, section string) (*model.ExecutionResult, error) {
	if err := internal.ValidateCode(code, s.cfg.MaxCodeLength); err != nil {
		return nil, err
	}

	lock := s.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	sess := s.session(taskID)
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, taskID)
	}

	result, err := sess.ExecuteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if section != "" {
		sess.AddContent(section, result.CombinedText)
	}
	return result, nil
}

// CreatedImages returns artifacts newly produced since the last query,
// scoped to the session. Empty when the task has no session.
func (s *SessionService) CreatedImages(ctx context.Context, taskID, section string) []string {
	lock := s.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	sess := s.session(taskID)
	if sess == nil {
		s.logger.Warn("image query for unknown task", zap.String("task_id", taskID))
		return nil
	}
	return sess.GetCreatedImages(ctx, section)
}

// CleanupSession tears the task's session down. Safe to call for tasks
// that never had one; never returns an error.
func (s *SessionService) CleanupSession(ctx context.Context, taskID string) {
	lock := s.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	sess := s.session(taskID)
	if sess == nil {
		s.logger.Info("cleanup skipped: no session", zap.String("task_id", taskID))
		return
	}
	sess.Cleanup(ctx)

	s.mu.Lock()
	delete(s.sessions, taskID)
	s.mu.Unlock()
}
