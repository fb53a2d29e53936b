package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codesession/sandbox"
)

func writeWorkspaceFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestInitializeUploadsOnlyRecognizedFiles(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "data.csv", "a,b,c,d,e\n")
	writeWorkspaceFile(t, dir, "notes.txt", "not tabular")

	handle := newFakeHandle()
	sess, _ := newTestSession(dir, handle)

	require.NoError(t, sess.Initialize(context.Background(), 60))

	// The pre-execute plotting script ran first.
	require.Len(t, handle.runCalls, 1)
	assert.Contains(t, handle.runCalls[0], "matplotlib")

	_, ok := handle.files[RemoteDataDir+"/data.csv"]
	assert.True(t, ok, "data.csv should be uploaded")
	_, ok = handle.files[RemoteDataDir+"/notes.txt"]
	assert.False(t, ok, "notes.txt has an unrecognized extension")
}

func TestInitializeProvisionFailure(t *testing.T) {
	sess := NewSession(SessionConfig{
		TaskID:   "task-1",
		WorkDir:  t.TempDir(),
		Provider: &fakeProvider{err: errors.New("quota exceeded")},
	})

	err := sess.Initialize(context.Background(), 60)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSandboxProvision)
}

func TestInitializePreExecuteFault(t *testing.T) {
	handle := newFakeHandle()
	handle.runCode = func(string) (*sandbox.Execution, error) {
		return &sandbox.Execution{Error: &sandbox.ExecutionError{
			Name: "ImportError", Value: "no module named matplotlib",
		}}, nil
	}
	sess, _ := newTestSession(t.TempDir(), handle)

	err := sess.Initialize(context.Background(), 60)
	assert.ErrorIs(t, err, ErrSandboxProvision)
}

func TestInitializeMissingWorkspace(t *testing.T) {
	handle := newFakeHandle()
	sess, _ := newTestSession(filepath.Join(t.TempDir(), "does-not-exist"), handle)

	err := sess.Initialize(context.Background(), 60)
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestInitializeUploadFailureAborts(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "a.csv", "1")
	writeWorkspaceFile(t, dir, "b.csv", "2")

	handle := newFakeHandle()
	handle.writeErr["a.csv"] = errors.New("connection reset")
	sess, _ := newTestSession(dir, handle)

	err := sess.Initialize(context.Background(), 60)
	require.ErrorIs(t, err, ErrFileUpload)
	assert.NotContains(t, handle.writes, "b.csv", "upload pass must stop at the first failure")
}

func TestExecuteWithoutInitialize(t *testing.T) {
	sess, _ := newTestSession(t.TempDir(), newFakeHandle())

	_, err := sess.ExecuteCode(context.Background(), "print(1)")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestExecuteStdout(t *testing.T) {
	handle := newFakeHandle()
	sess, _ := newTestSession(t.TempDir(), handle)
	require.NoError(t, sess.Initialize(context.Background(), 60))

	handle.runCode = func(string) (*sandbox.Execution, error) {
		return &sandbox.Execution{Stdout: []string{"hello"}}, nil
	}

	result, err := sess.ExecuteCode(context.Background(), `print("hello")`)
	require.NoError(t, err)
	assert.False(t, result.ErrorOccurred)
	assert.Empty(t, result.ErrorMessage)
	assert.Contains(t, result.CombinedText, "hello")
}

func TestExecuteFault(t *testing.T) {
	handle := newFakeHandle()
	sess, _ := newTestSession(t.TempDir(), handle)
	require.NoError(t, sess.Initialize(context.Background(), 60))

	handle.runCode = func(string) (*sandbox.Execution, error) {
		return &sandbox.Execution{Error: &sandbox.ExecutionError{
			Name:      "ValueError",
			Value:     "bad input",
			Traceback: "Traceback (most recent call last):\n  ...",
		}}, nil
	}

	result, err := sess.ExecuteCode(context.Background(), "raise ValueError('bad input')")
	require.NoError(t, err, "a faulting program is an outcome, not a Go error")
	assert.True(t, result.ErrorOccurred)
	assert.Contains(t, result.CombinedText, "ValueError")
	assert.Contains(t, result.CombinedText, "bad input")

	var errorItems int
	for _, item := range result.Display {
		if item.Kind == "error" {
			errorItems++
			assert.Contains(t, item.Msg, "ValueError")
			assert.Contains(t, item.Msg, "bad input")
		}
	}
	assert.Equal(t, 1, errorItems)
}

func TestExecuteTransportFailure(t *testing.T) {
	handle := newFakeHandle()
	sess, _ := newTestSession(t.TempDir(), handle)
	require.NoError(t, sess.Initialize(context.Background(), 60))

	handle.runCode = func(string) (*sandbox.Execution, error) {
		return nil, errors.New("sandbox timed out")
	}

	result, err := sess.ExecuteCode(context.Background(), "while True: pass")
	require.NoError(t, err)
	assert.True(t, result.ErrorOccurred)
	assert.Contains(t, result.ErrorMessage, "sandbox timed out")
}

func TestExecuteDownloadsRemoteRewrite(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "data.csv", "old-local!")

	handle := newFakeHandle()
	sess, _ := newTestSession(dir, handle)
	require.NoError(t, sess.Initialize(context.Background(), 60))

	// Code in the sandbox rewrites the file remotely.
	remote := []byte("rewritten remote content")
	handle.runCode = func(string) (*sandbox.Execution, error) {
		handle.files[RemoteDataDir+"/data.csv"] = remote
		return &sandbox.Execution{}, nil
	}

	_, err := sess.ExecuteCode(context.Background(), "rewrite()")
	require.NoError(t, err)

	local, err := os.ReadFile(filepath.Join(dir, "data.csv"))
	require.NoError(t, err)
	assert.Equal(t, remote, local, "local copy must reflect remote content byte-for-byte")
}

func TestDownloadSkipsDenylistAndBadFiles(t *testing.T) {
	dir := t.TempDir()
	handle := newFakeHandle()
	sess, log := newTestSession(dir, handle)
	require.NoError(t, sess.Initialize(context.Background(), 60))

	handle.files[RemoteDataDir+"/.bashrc"] = []byte("export X=1")
	handle.files[RemoteDataDir+"/out.csv"] = []byte("result")
	handle.files[RemoteDataDir+"/broken.bin"] = []byte("x")
	handle.readErr["broken.bin"] = errors.New("read failed")

	sess.DownloadAllFiles(context.Background())

	_, err := os.Stat(filepath.Join(dir, ".bashrc"))
	assert.True(t, os.IsNotExist(err), "denylisted shell files are never downloaded")

	data, err := os.ReadFile(filepath.Join(dir, "out.csv"))
	require.NoError(t, err, "pass continues after a single file failure")
	assert.Equal(t, "result", string(data))

	assert.True(t, log.contains("broken.bin"), "the skipped file is recorded as suppressed")
}

func TestDownloadListFailureIsSwallowed(t *testing.T) {
	handle := newFakeHandle()
	sess, log := newTestSession(t.TempDir(), handle)
	require.NoError(t, sess.Initialize(context.Background(), 60))

	handle.listErr = errors.New("connection refused")
	sess.DownloadAllFiles(context.Background())

	assert.True(t, log.contains("list remote files"))
}

func TestDownloadCreatesWorkspace(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "ws")
	require.NoError(t, os.MkdirAll(dir, 0755))

	handle := newFakeHandle()
	sess, _ := newTestSession(dir, handle)
	require.NoError(t, sess.Initialize(context.Background(), 60))

	require.NoError(t, os.RemoveAll(dir))
	handle.files[RemoteDataDir+"/out.csv"] = []byte("x")

	sess.DownloadAllFiles(context.Background())

	_, err := os.Stat(filepath.Join(dir, "out.csv"))
	assert.NoError(t, err)
}

func TestCleanupNeverInitialized(t *testing.T) {
	handle := newFakeHandle()
	sess, log := newTestSession(t.TempDir(), handle)

	sess.Cleanup(context.Background())

	assert.False(t, handle.killed)
	assert.Empty(t, log.ops)
}

func TestCleanupAlreadyStopped(t *testing.T) {
	handle := newFakeHandle()
	sess, _ := newTestSession(t.TempDir(), handle)
	require.NoError(t, sess.Initialize(context.Background(), 60))

	handle.running = false
	sess.Cleanup(context.Background())

	assert.False(t, handle.killed, "a stopped sandbox is not killed again")
}

func TestCleanupKillsEvenWhenDownloadFails(t *testing.T) {
	handle := newFakeHandle()
	sess, log := newTestSession(t.TempDir(), handle)
	require.NoError(t, sess.Initialize(context.Background(), 60))

	handle.listErr = errors.New("gone")
	sess.Cleanup(context.Background())

	assert.True(t, handle.killed)
	assert.True(t, log.contains("list remote files"))
}

func TestCleanupSwallowsKillFailure(t *testing.T) {
	handle := newFakeHandle()
	sess, log := newTestSession(t.TempDir(), handle)
	require.NoError(t, sess.Initialize(context.Background(), 60))

	handle.killErr = errors.New("daemon unavailable")
	sess.Cleanup(context.Background()) // must not panic or propagate

	assert.True(t, log.contains("kill sandbox"))
}
