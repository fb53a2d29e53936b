package executor

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"

	"codesession/sandbox"
)

// fakeHandle is an in-memory sandbox: a path→bytes filesystem plus a
// programmable RunCode.
type fakeHandle struct {
	files   map[string][]byte
	running bool

	runCode  func(code string) (*sandbox.Execution, error)
	runCalls []string

	writeErr map[string]error // keyed by filename
	readErr  map[string]error
	listErr  error
	killErr  error

	writes []string
	killed bool
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		files:    make(map[string][]byte),
		running:  true,
		writeErr: make(map[string]error),
		readErr:  make(map[string]error),
	}
}

func (h *fakeHandle) RunCode(_ context.Context, code string) (*sandbox.Execution, error) {
	h.runCalls = append(h.runCalls, code)
	if h.runCode != nil {
		return h.runCode(code)
	}
	return &sandbox.Execution{}, nil
}

func (h *fakeHandle) WriteFile(_ context.Context, filePath string, data []byte) error {
	name := path.Base(filePath)
	if err := h.writeErr[name]; err != nil {
		return err
	}
	h.files[filePath] = append([]byte(nil), data...)
	h.writes = append(h.writes, name)
	return nil
}

func (h *fakeHandle) ReadFile(_ context.Context, filePath string) ([]byte, error) {
	if err := h.readErr[path.Base(filePath)]; err != nil {
		return nil, err
	}
	data, ok := h.files[filePath]
	if !ok {
		return nil, errors.New("no such file: " + filePath)
	}
	return append([]byte(nil), data...), nil
}

func (h *fakeHandle) ListFiles(_ context.Context, dir string) ([]sandbox.FileInfo, error) {
	if h.listErr != nil {
		return nil, h.listErr
	}
	var infos []sandbox.FileInfo
	for p := range h.files {
		if path.Dir(p) == dir {
			infos = append(infos, sandbox.FileInfo{Name: path.Base(p), Path: p})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (h *fakeHandle) IsRunning(context.Context) bool { return h.running }

func (h *fakeHandle) Kill(context.Context) error {
	h.killed = true
	return h.killErr
}

type fakeProvider struct {
	handle  *fakeHandle
	err     error
	created int
}

func (p *fakeProvider) Create(context.Context, int) (sandbox.Handle, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.created++
	return p.handle, nil
}

type suppressedLog struct {
	ops []string
}

func (l *suppressedLog) hook(op string, _ error) {
	l.ops = append(l.ops, op)
}

func (l *suppressedLog) contains(substr string) bool {
	for _, op := range l.ops {
		if strings.Contains(op, substr) {
			return true
		}
	}
	return false
}

func newTestSession(workDir string, handle *fakeHandle) (*Session, *suppressedLog) {
	log := &suppressedLog{}
	sess := NewSession(SessionConfig{
		TaskID:       "task-1",
		WorkDir:      workDir,
		Provider:     &fakeProvider{handle: handle},
		OnSuppressed: log.hook,
	})
	return sess, log
}
