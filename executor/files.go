package executor

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// RemoteDataDir is where input files land inside the sandbox and where
// produced files are collected from.
const RemoteDataDir = "/home/user"

// uploadExtensions are the tabular-data inputs staged into the sandbox.
var uploadExtensions = map[string]bool{
	".csv":  true,
	".xls":  true,
	".xlsx": true,
}

// downloadDenylist excludes the sandbox home's shell configuration
// files from the download pass.
var downloadDenylist = map[string]bool{
	".bashrc":      true,
	".profile":     true,
	".bash_logout": true,
}

// uploadAllFiles stages every recognized input file from the workspace
// into the sandbox. The scan is non-recursive. The first file that
// fails to transfer aborts the pass and the error propagates.
func (s *Session) uploadAllFiles(ctx context.Context) error {
	entries, err := os.ReadDir(s.workDir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWorkspaceNotFound, s.workDir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !uploadExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.workDir, entry.Name()))
		if err != nil {
			s.logger.Error("failed to read input file", zap.String("file", entry.Name()), zap.Error(err))
			return fmt.Errorf("%w: %s: %v", ErrFileUpload, entry.Name(), err)
		}

		remotePath := path.Join(RemoteDataDir, entry.Name())
		if err := s.handle.WriteFile(ctx, remotePath, data); err != nil {
			s.logger.Error("failed to upload input file", zap.String("file", entry.Name()), zap.Error(err))
			return fmt.Errorf("%w: %s: %v", ErrFileUpload, entry.Name(), err)
		}
		s.logger.Info("uploaded input file", zap.String("file", entry.Name()), zap.Int("bytes", len(data)))
	}
	return nil
}

// DownloadAllFiles copies every file in the sandbox home (minus the
// shell-config denylist) into the workspace, creating it if needed and
// unconditionally overwriting local files of the same name. The whole
// pass is advisory: a single file's failure skips that file, a listing
// failure skips the pass, and nothing propagates.
func (s *Session) DownloadAllFiles(ctx context.Context) {
	if s.handle == nil {
		return
	}

	files, err := s.handle.ListFiles(ctx, RemoteDataDir)
	if err != nil {
		s.suppress("list remote files", err)
		return
	}

	if err := os.MkdirAll(s.workDir, 0755); err != nil {
		s.suppress("create workspace directory", err)
		return
	}

	for _, f := range files {
		if downloadDenylist[f.Name] {
			continue
		}

		data, err := s.handle.ReadFile(ctx, f.Path)
		if err != nil {
			s.suppress("download "+f.Name, err)
			continue
		}
		if err := os.WriteFile(filepath.Join(s.workDir, f.Name), data, 0644); err != nil {
			s.suppress("write "+f.Name, err)
			continue
		}
		s.logger.Info("downloaded file", zap.String("file", f.Name), zap.Int("bytes", len(data)))
	}
}
