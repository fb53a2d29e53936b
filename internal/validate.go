package internal

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Message string
	Details string
}

func (e *ValidationError) Error() string {
	return e.Message + ": " + e.Details
}

// ValidateCode rejects submissions that cannot be meaningfully
// executed. Content is not inspected: the sandbox is the isolation
// boundary and arbitrary code is expected.
func ValidateCode(code string, maxCodeLength int) error {
	if strings.TrimSpace(code) == "" {
		return &ValidationError{
			Message: "code is empty",
			Details: "nothing to execute",
		}
	}
	if len(code) > maxCodeLength {
		return &ValidationError{
			Message: "code length exceeds maximum limit",
			Details: fmt.Sprintf("max length allowed is %d", maxCodeLength),
		}
	}
	return nil
}
