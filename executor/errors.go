package executor

import "errors"

var (
	// ErrSandboxProvision means the sandbox could not be created or its
	// pre-execution setup failed. Fatal to task setup.
	ErrSandboxProvision = errors.New("sandbox provisioning failed")

	// ErrWorkspaceNotFound means the local workspace directory does not
	// exist or cannot be read. Fatal to task setup.
	ErrWorkspaceNotFound = errors.New("workspace directory not found")

	// ErrFileUpload means an input file could not be transferred into
	// the sandbox. Fatal to task setup; the upload pass stops at the
	// first failure.
	ErrFileUpload = errors.New("file upload failed")

	// ErrNotInitialized means ExecuteCode was called before Initialize.
	// A usage fault, not an execution outcome.
	ErrNotInitialized = errors.New("sandbox not initialized")
)
